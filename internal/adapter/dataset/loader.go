// Package dataset reads and validates FAQ dataset files.
package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"nutriguide/internal/adapter/analyzer"
	"nutriguide/internal/domain"
	"nutriguide/internal/port"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	if err := validate.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
}

// Validate checks every group of a dataset. An empty slice is valid.
func Validate(groups []domain.FAQ) error {
	fields := make(map[string]string)
	for i, g := range groups {
		if err := validate.Struct(g); err != nil {
			var verrs validator.ValidationErrors
			if !errors.As(err, &verrs) {
				return err
			}
			for _, fe := range verrs {
				fields[fmt.Sprintf("[%d].%s", i, fe.Field())] = describe(fe)
			}
		}
		// A question with no letters or digits normalizes to nothing and
		// could never be matched.
		for j, q := range g.Questions {
			key := fmt.Sprintf("[%d].questions[%d]", i, j)
			if _, ok := fields[key]; !ok && strings.TrimSpace(analyzer.Normalize(q)) == "" {
				fields[key] = "must contain a word after normalization"
			}
		}
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Message: "dataset has invalid entries", Fields: fields}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
	case "notblank":
		return "must not be blank"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// Parse decodes a dataset document: a JSON array of
// {"questions": [...], "answer": "..."} objects. Unknown keys, non-array
// documents and empty arrays are rejected.
func Parse(r io.Reader) ([]domain.FAQ, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, &domain.ValidationError{Message: "dataset must be a JSON array"}
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()

	var groups []domain.FAQ
	if err := dec.Decode(&groups); err != nil {
		return nil, &domain.ValidationError{Message: fmt.Sprintf("malformed dataset: %v", err)}
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, &domain.ValidationError{Message: "malformed dataset: unexpected data after the top-level array"}
	}
	if len(groups) == 0 {
		return nil, &domain.ValidationError{Message: "dataset is empty"}
	}
	if err := Validate(groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// LoadFile parses a dataset file.
func LoadFile(path string) ([]domain.FAQ, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	groups, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return groups, nil
}

// LoadDir parses every file the walker finds under root and concatenates
// the groups in lexical path order.
func LoadDir(walker port.FileWalker, root string) ([]domain.FAQ, []string, error) {
	files, err := walker.Walk(root)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to walk dataset directory: %w", err)
	}
	if len(files) == 0 {
		return nil, nil, &domain.ValidationError{Message: fmt.Sprintf("no dataset files found under %s", root)}
	}

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	sort.Strings(paths)

	var all []domain.FAQ
	for _, p := range paths {
		groups, err := LoadFile(p)
		if err != nil {
			return nil, nil, err
		}
		all = append(all, groups...)
	}
	return all, paths, nil
}
