package question

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/mod/semver"
)

// SupportedBankMajor is the bank format major version this build reads.
const SupportedBankMajor = "v1"

// ErrUnsupportedBankVersion is returned for banks whose format version is
// missing, malformed, or of a different major version.
var ErrUnsupportedBankVersion = errors.New("unsupported question bank version")

//go:embed bank.schema.json
var bankSchemaJSON []byte

var (
	bankSchemaOnce sync.Once
	bankSchema     *jsonschema.Schema
	bankSchemaErr  error
)

// ResourceKind classifies learning content referenced by recommendations.
type ResourceKind string

const (
	ResourceStory ResourceKind = "STORY"
	ResourceTest  ResourceKind = "TEST"
)

// Resource is a piece of learning content (a lesson story or a practice
// test) tagged with the category and difficulty it targets.
type Resource struct {
	ID            string       `json:"id"`
	Kind          ResourceKind `json:"kind"`
	Category      string       `json:"category"`
	Difficulty    Difficulty   `json:"difficulty"`
	Title         string       `json:"title"`
	Effectiveness float64      `json:"effectiveness,omitempty"`
}

// Bank is the on-disk question bank format.
type Bank struct {
	Version   string     `json:"version"`
	Questions []Question `json:"questions"`
	Content   []Resource `json:"content,omitempty"`
}

// LoadBankFile reads and validates a bank from path.
func LoadBankFile(path string) (*Bank, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bank: %w", err)
	}
	defer f.Close()
	return LoadBank(f)
}

// LoadBank decodes a bank, checks it against the bank JSON Schema, verifies
// the format version, and validates every question.
func LoadBank(r io.Reader) (*Bank, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read bank: %w", err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse bank: %w", err)
	}

	schema, err := compiledBankSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("bank schema validation failed: %w", err)
	}

	var bank Bank
	if err := json.Unmarshal(raw, &bank); err != nil {
		return nil, fmt.Errorf("decode bank: %w", err)
	}

	if !semver.IsValid(bank.Version) || semver.Major(bank.Version) != SupportedBankMajor {
		return nil, fmt.Errorf("%w: %q (want %s.x.y)", ErrUnsupportedBankVersion, bank.Version, SupportedBankMajor)
	}

	seen := make(map[string]bool, len(bank.Questions))
	for i := range bank.Questions {
		q := &bank.Questions[i]
		if err := Validate(q); err != nil {
			return nil, err
		}
		if seen[q.ID] {
			return nil, fmt.Errorf("%w %s: duplicate id", ErrInvalidQuestion, q.ID)
		}
		seen[q.ID] = true
	}
	return &bank, nil
}

func compiledBankSchema() (*jsonschema.Schema, error) {
	bankSchemaOnce.Do(func() {
		var def any
		if err := json.Unmarshal(bankSchemaJSON, &def); err != nil {
			bankSchemaErr = fmt.Errorf("parse bank schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		const url = "schema://question-bank.json"
		if err := c.AddResource(url, def); err != nil {
			bankSchemaErr = fmt.Errorf("add bank schema: %w", err)
			return
		}
		bankSchema, bankSchemaErr = c.Compile(url)
	})
	return bankSchema, bankSchemaErr
}
