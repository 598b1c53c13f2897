package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"reflect"
	"strconv"
	"strings"

	"mocktest_backend/internal/model"
	"mocktest_backend/internal/repository"
	"mocktest_backend/internal/util"
	"mocktest_backend/pkg/logger"
	"mocktest_backend/pkg/monitoring"
	"mocktest_backend/pkg/tracing"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	SourceSingle = "single"
	SourceCSV    = "csv"
	SourceJSON   = "json"

	// missingOption fills CSV option columns that are absent or blank.
	missingOption = "N/A"
)

// RowError points at one invalid field of one uploaded row. Row is 1-based
// over data rows; 0 means a single question.
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError rejects a whole upload.
type ValidationError struct {
	Rows []RowError
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%d invalid field(s) in upload", len(e.Rows))
}

func (e *ValidationError) Unwrap() error { return util.ErrInvalidQuestion }

type ImportResult struct {
	Inserted    int   `json:"inserted"`
	CoercedRows []int `json:"coercedRows,omitempty"`
}

// QuestionInput is the wire shape of a single question.
type QuestionInput struct {
	TestID     string   `json:"testId" form:"testId"`
	Question   string   `json:"question" form:"question"`
	Options    []string `json:"options" form:"options"`
	Answer     FlexInt  `json:"answer" form:"answer"`
	Difficulty string   `json:"difficulty" form:"difficulty"`
	Subjects   []string `json:"subjects" form:"subjects"`
	ImageURL   *string  `json:"imageUrl" form:"imageUrl"`
}

// FlexInt accepts 2 and "2" alike; Valid is false when the value was
// missing or not an integer.
type FlexInt struct {
	Value int
	Valid bool
}

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	*f = FlexInt{}
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		*f = FlexInt{Value: n, Valid: true}
	}
	return nil
}

// UnmarshalParam lets form binding fill a FlexInt.
func (f *FlexInt) UnmarshalParam(param string) error {
	return f.UnmarshalJSON([]byte(param))
}

type IngestionService struct {
	Store    repository.TestStore
	Storage  *StorageService
	validate *validator.Validate
}

func NewIngestionService(store repository.TestStore, storage *StorageService) *IngestionService {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &IngestionService{Store: store, Storage: storage, validate: v}
}

func (s *IngestionService) check(row int, q *model.Question) []RowError {
	err := s.validate.Struct(q)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []RowError{{Row: row, Field: "", Message: err.Error()}}
	}
	out := make([]RowError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, RowError{Row: row, Field: fe.Field(), Message: describe(fe)})
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "len":
		return fmt.Sprintf("must have exactly %s entries", fe.Param())
	case "gte", "lte":
		return "must be between 0 and 3"
	case "oneof":
		return "must be one of easy, medium, hard"
	default:
		return fmt.Sprintf("failed %s", fe.Tag())
	}
}

func normalizeDifficulty(d string) model.Difficulty {
	d = strings.ToLower(strings.TrimSpace(d))
	if d == "" {
		return model.DifficultyEasy
	}
	return model.Difficulty(d)
}

func cleanSubjects(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (in QuestionInput) toModel() (model.Question, []RowError) {
	q := model.Question{
		TestID:     strings.TrimSpace(in.TestID),
		Question:   strings.TrimSpace(in.Question),
		Options:    in.Options,
		Answer:     in.Answer.Value,
		Difficulty: normalizeDifficulty(in.Difficulty),
		Subjects:   cleanSubjects(in.Subjects),
		ImageURL:   in.ImageURL,
	}
	if !in.Answer.Valid {
		return q, []RowError{{Field: "answer", Message: "must be an integer between 0 and 3"}}
	}
	return q, nil
}

func (s *IngestionService) ensureTests(ctx context.Context, ids map[string]struct{}) error {
	for id := range ids {
		if _, err := s.Store.FindTestByID(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: %s", util.ErrTestNotFound, id)
			}
			return err
		}
	}
	return nil
}

// AddQuestion validates and stores one question, uploading its image first
// when one is attached.
func (s *IngestionService) AddQuestion(ctx context.Context, in QuestionInput, image *multipart.FileHeader) (*model.Question, error) {
	q, rowErrs := in.toModel()
	rowErrs = append(rowErrs, s.check(0, &q)...)
	if len(rowErrs) > 0 {
		return nil, &ValidationError{Rows: rowErrs}
	}
	if err := s.ensureTests(ctx, map[string]struct{}{q.TestID: {}}); err != nil {
		return nil, err
	}

	if image != nil {
		url, err := s.Storage.UploadImage(ctx, image)
		if err != nil {
			return nil, err
		}
		q.ImageURL = &url
	}

	if err := s.Store.CreateQuestion(ctx, &q); err != nil {
		return nil, err
	}
	monitoring.QuestionsIngested.WithLabelValues(SourceSingle).Inc()
	return &q, nil
}

// ImportCSV reads a header row naming question, option1..option4, answer,
// difficulty and optionally subject. Blank options become "N/A", a bad answer
// index becomes 0 and is reported in CoercedRows, and a non-empty subject
// argument tags every row.
func (s *IngestionService) ImportCSV(ctx context.Context, testID, subject string, r io.Reader) (*ImportResult, error) {
	ctx, span := tracing.Tracer.Start(ctx, "ingestion.csv")
	defer span.End()

	testID = strings.TrimSpace(testID)
	if testID == "" {
		return nil, util.ErrTestIDRequired
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &ValidationError{Rows: []RowError{{Row: 0, Field: "header", Message: "file is empty"}}}
	}
	if err != nil {
		return nil, &ValidationError{Rows: []RowError{{Row: 0, Field: "header", Message: err.Error()}}}
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		cols[h] = i
	}
	if _, ok := cols["question"]; !ok {
		return nil, &ValidationError{Rows: []RowError{{Row: 0, Field: "header", Message: "missing question column"}}}
	}

	field := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var (
		questions []model.Question
		rowErrs   []RowError
		coerced   []int
	)
	for row := 1; ; row++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: row, Message: err.Error()})
			continue
		}

		options := make([]string, model.OptionCount)
		for i := range options {
			options[i] = field(rec, fmt.Sprintf("option%d", i+1))
			if options[i] == "" {
				options[i] = missingOption
			}
		}

		answer, err := strconv.Atoi(field(rec, "answer"))
		if err != nil || answer < 0 || answer >= model.OptionCount {
			answer = 0
			coerced = append(coerced, row)
		}

		subjects := []string{}
		if subject != "" {
			subjects = append(subjects, subject)
		} else if raw := field(rec, "subject"); raw != "" {
			subjects = cleanSubjects(strings.FieldsFunc(raw, func(r rune) bool { return r == '|' || r == ';' }))
		}

		q := model.Question{
			TestID:     testID,
			Question:   field(rec, "question"),
			Options:    options,
			Answer:     answer,
			Difficulty: normalizeDifficulty(field(rec, "difficulty")),
			Subjects:   subjects,
		}
		rowErrs = append(rowErrs, s.check(row, &q)...)
		questions = append(questions, q)
	}

	if len(rowErrs) > 0 {
		return nil, &ValidationError{Rows: rowErrs}
	}
	if len(questions) == 0 {
		return nil, &ValidationError{Rows: []RowError{{Row: 0, Field: "file", Message: "no data rows"}}}
	}
	if err := s.ensureTests(ctx, map[string]struct{}{testID: {}}); err != nil {
		return nil, err
	}
	if err := s.Store.CreateQuestions(ctx, questions); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("questions", len(questions)))
	monitoring.QuestionsIngested.WithLabelValues(SourceCSV).Add(float64(len(questions)))
	logger.Log.Info("csv questions imported",
		zap.String("test_id", testID),
		zap.Int("count", len(questions)),
		zap.Int("coerced", len(coerced)),
	)
	return &ImportResult{Inserted: len(questions), CoercedRows: coerced}, nil
}

// ImportJSON stores a JSON array of questions. Any invalid item rejects the
// whole batch.
func (s *IngestionService) ImportJSON(ctx context.Context, r io.Reader) (*ImportResult, error) {
	ctx, span := tracing.Tracer.Start(ctx, "ingestion.json")
	defer span.End()

	body, err := io.ReadAll(io.LimitReader(r, util.MaxUploadBytes))
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(body, []byte("\xef\xbb\xbf")))
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, util.ErrInvalidJSONBatch
	}

	var inputs []QuestionInput
	if err := json.Unmarshal(trimmed, &inputs); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidJSONBatch, err)
	}
	if len(inputs) == 0 {
		return nil, &ValidationError{Rows: []RowError{{Row: 0, Field: "file", Message: "no questions in array"}}}
	}

	questions := make([]model.Question, 0, len(inputs))
	testIDs := map[string]struct{}{}
	var rowErrs []RowError
	for i, in := range inputs {
		row := i + 1
		q, errs := in.toModel()
		for _, e := range errs {
			e.Row = row
			rowErrs = append(rowErrs, e)
		}
		rowErrs = append(rowErrs, s.check(row, &q)...)
		if q.TestID != "" {
			testIDs[q.TestID] = struct{}{}
		}
		questions = append(questions, q)
	}
	if len(rowErrs) > 0 {
		return nil, &ValidationError{Rows: rowErrs}
	}
	if err := s.ensureTests(ctx, testIDs); err != nil {
		return nil, err
	}
	if err := s.Store.CreateQuestions(ctx, questions); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("questions", len(questions)))
	monitoring.QuestionsIngested.WithLabelValues(SourceJSON).Add(float64(len(questions)))
	logger.Log.Info("json questions imported", zap.Int("count", len(questions)))
	return &ImportResult{Inserted: len(questions)}, nil
}
