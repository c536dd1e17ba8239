// File: internal/ui/prompt/prompt.go
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Keys listed before a deletion prompt; the rest are summarized
const previewLimit = 10

// Defines the interface for prompting the user for input
type Prompter interface {
	// Asks the user for confirmation by requiring them to type a specific expected value
	Confirm(message string, expectedValue string) (bool, error)
}

// Provides a standard implementation of the Prompter interface using specified input/output streams
type StandardPrompter struct {
	reader *bufio.Reader
	writer io.Writer
}

// Creates a new StandardPrompter with the given input and output streams
func NewStandardPrompter(in io.Reader, out io.Writer) *StandardPrompter {
	return &StandardPrompter{
		reader: bufio.NewReader(in),
		writer: out,
	}
}

// Asks the user for confirmation by requiring them to type a specific expected value.
// Closed input counts as a refusal
func (p *StandardPrompter) Confirm(message string, expectedValue string) (bool, error) {
	if expectedValue == "" {
		return false, fmt.Errorf("expected confirmation value cannot be empty")
	}

	fmt.Fprintln(p.writer, message)
	fmt.Fprintf(p.writer, "To confirm, please type '%s': ", expectedValue)

	input, err := p.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("error reading user input: %w", err)
	}

	return strings.TrimSpace(input) == expectedValue, nil
}

// ConfirmDeletion lists the remote keys about to be removed and asks the user to type the bucket name
func ConfirmDeletion(p Prompter, w io.Writer, bucket string, keys []string) (bool, error) {
	fmt.Fprintf(w, "The following %d object(s) exist in '%s' but not locally:\n", len(keys), bucket)
	for i, key := range keys {
		if i == previewLimit {
			fmt.Fprintf(w, "  ... and %d more\n", len(keys)-previewLimit)
			break
		}
		fmt.Fprintf(w, "  - %s\n", key)
	}

	return p.Confirm("These objects will be permanently deleted.", bucket)
}
