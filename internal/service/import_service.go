package service

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/quizdesk/quizdesk-backend/internal/repository"
	"github.com/rs/zerolog"
)

// ErrEmptyImport is returned when the import file holds no data rows.
var ErrEmptyImport = errors.New("import file has no rows")

// StudentCreator inserts student rows. Implemented by StudentRepository.
type StudentCreator interface {
	Create(ctx context.Context, s *model.Student) error
}

// PasswordHasher hashes generated passwords. Implemented by AuthService.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
}

// ImportRow is the per-row outcome of a bulk import. Password carries
// the generated plaintext exactly once, for handing out to the student.
type ImportRow struct {
	Line     int    `json:"line"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ImportSummary aggregates an import run.
type ImportSummary struct {
	Created int         `json:"created"`
	Failed  int         `json:"failed"`
	Rows    []ImportRow `json:"rows"`
}

// ImportService bulk-creates students from two-column (name, email)
// delimited text, generating a random password per row.
type ImportService struct {
	students       StudentCreator
	hasher         PasswordHasher
	passwordLength int
	log            zerolog.Logger
}

// NewImportService creates a new ImportService.
func NewImportService(students StudentCreator, hasher PasswordHasher, passwordLength int, log zerolog.Logger) *ImportService {
	if passwordLength < 8 {
		passwordLength = 8
	}
	return &ImportService{
		students:       students,
		hasher:         hasher,
		passwordLength: passwordLength,
		log:            log.With().Str("component", "import_service").Logger(),
	}
}

// ImportStudents parses the reader and inserts one student per row into
// the given batch. A bad row is reported, not fatal: the rest of the
// file still imports. Duplicate emails surface as per-row errors.
func (s *ImportService) ImportStudents(ctx context.Context, r io.Reader, batchID int) (*ImportSummary, error) {
	records, err := parseRoster(r)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrEmptyImport
	}

	summary := &ImportSummary{}
	for _, rec := range records {
		row := ImportRow{Line: rec.line, Name: rec.name, Email: rec.email}

		if err := rec.validate(); err != nil {
			row.Error = err.Error()
			summary.Failed++
			summary.Rows = append(summary.Rows, row)
			continue
		}

		password, err := GeneratePassword(s.passwordLength)
		if err != nil {
			return nil, fmt.Errorf("generate password: %w", err)
		}
		hash, err := s.hasher.HashPassword(password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}

		student := &model.Student{
			Name:         rec.name,
			Email:        rec.email,
			PasswordHash: hash,
			BatchID:      batchID,
		}
		if err := s.students.Create(ctx, student); err != nil {
			if errors.Is(err, repository.ErrDuplicateEmail) {
				row.Error = "email already exists"
			} else {
				row.Error = "insert failed"
				s.log.Error().Err(err).Int("line", rec.line).Msg("Import insert failed")
			}
			summary.Failed++
			summary.Rows = append(summary.Rows, row)
			continue
		}

		row.Password = password
		summary.Created++
		summary.Rows = append(summary.Rows, row)
	}

	s.log.Info().
		Int("created", summary.Created).
		Int("failed", summary.Failed).
		Int("batch_id", batchID).
		Msg("Student import finished")

	return summary, nil
}

type rosterRecord struct {
	line  int
	name  string
	email string
}

func (r rosterRecord) validate() error {
	if r.name == "" {
		return errors.New("name is empty")
	}
	if !strings.Contains(r.email, "@") {
		return errors.New("email is not valid")
	}
	return nil
}

// parseRoster reads two-column (name, email) rows. The delimiter is
// sniffed from the first line (tab or comma) and an optional header
// row is skipped when its second column is not an email address.
func parseRoster(r io.Reader) ([]rosterRecord, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read import file: %w", err)
	}

	text := string(raw)
	reader := csv.NewReader(strings.NewReader(text))
	if firstLine, _, found := strings.Cut(text, "\n"); found || firstLine != "" {
		if strings.Contains(firstLine, "\t") && !strings.Contains(firstLine, ",") {
			reader.Comma = '\t'
		}
	}
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var records []rosterRecord
	line := 0
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse line %d: %w", line+1, err)
		}
		line++

		if len(fields) < 2 {
			records = append(records, rosterRecord{line: line, name: strings.TrimSpace(strings.Join(fields, " "))})
			continue
		}

		rec := rosterRecord{
			line:  line,
			name:  strings.TrimSpace(fields[0]),
			email: strings.TrimSpace(fields[1]),
		}

		// Header row: first data line whose email column is not an email.
		if line == 1 && !strings.Contains(rec.email, "@") {
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

// GeneratePassword returns an opaque lowercase token of length n.
// This is credential bootstrap material, not a cryptographic key.
func GeneratePassword(n int) (string, error) {
	buf := make([]byte, (n*5+7)/8+1)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	encoded := strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf))
	if len(encoded) < n {
		return "", errors.New("short password encoding")
	}
	return encoded[:n], nil
}
