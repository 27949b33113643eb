package plan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/Iron-Ham/symphony/internal/errors"
)

// BlockLanguage is the info string of the fenced block holding the phases.
const BlockLanguage = "symphony-phases"

var markdown = goldmark.New()

// ExtractBlock returns the body of the single ```symphony-phases fenced
// code block in a Markdown document. Only the fence's first info word is
// compared. It fails with ErrNoPhasesBlock when there is no such block and
// with ErrPlanInvalid when there is more than one.
func ExtractBlock(src []byte) ([]byte, error) {
	doc := markdown.Parser().Parse(text.NewReader(src))

	var blocks [][]byte
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fcb, ok := n.(*ast.FencedCodeBlock)
		if !ok || string(fcb.Language(src)) != BlockLanguage {
			return ast.WalkContinue, nil
		}

		var buf bytes.Buffer
		lines := fcb.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
		blocks = append(blocks, bytes.TrimSpace(buf.Bytes()))
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk plan markdown: %w", err)
	}

	switch len(blocks) {
	case 0:
		return nil, errors.ErrNoPhasesBlock
	case 1:
		return blocks[0], nil
	default:
		return nil, errors.Wrapf(errors.ErrPlanInvalid, "found %d %s blocks, expected exactly one", len(blocks), BlockLanguage)
	}
}

// HasBlock reports whether src contains exactly one phases block.
func HasBlock(src []byte) bool {
	_, err := ExtractBlock(src)
	return err == nil
}

// Parse extracts, decodes and validates the phases of a Markdown plan.
func Parse(src []byte) ([]Phase, error) {
	block, err := ExtractBlock(src)
	if err != nil {
		return nil, err
	}
	return ParseJSON(block)
}

// ParseFile reads and parses the plan at path.
func ParseFile(path string) ([]Phase, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errors.ErrPlanNotFound, "plan file %q", path)
		}
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	phases, err := Parse(src)
	if err != nil {
		return nil, errors.Wrapf(err, "plan %s", path)
	}
	return phases, nil
}

// ParseJSON decodes a JSON array of phases and validates it. Field-level
// problems are returned together as errors.ValidationErrors.
func ParseJSON(data []byte) ([]Phase, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.ValidationErrors{jsonError(data, err)}
	}
	if dec.More() {
		return nil, errors.ValidationErrors{
			errors.NewValidationError("Unexpected content after the phases array").WithField("phases"),
		}
	}

	if verrs := ValidatePhases(raw); len(verrs) > 0 {
		return nil, verrs
	}

	var phases []Phase
	if err := json.Unmarshal(data, &phases); err != nil {
		return nil, errors.ValidationErrors{jsonError(data, err)}
	}
	return phases, nil
}

func jsonError(data []byte, err error) *errors.ValidationError {
	var syn *json.SyntaxError
	if errors.As(err, &syn) {
		line := 1 + strings.Count(string(data[:min(int(syn.Offset), len(data))]), "\n")
		return errors.NewValidationError(
			fmt.Sprintf("Invalid JSON in %s block at line %d: %v", BlockLanguage, line, syn),
		).WithField("phases")
	}
	return errors.NewValidationError(
		fmt.Sprintf("Invalid JSON in %s block: %v", BlockLanguage, err),
	).WithField("phases")
}
