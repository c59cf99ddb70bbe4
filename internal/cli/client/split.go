package client

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/newsweave/internal/cli"
	"github.com/cloo-solutions/newsweave/internal/service"
)

const previewRunes = 60

// ChunkOutput is the JSON shape of one paragraph chunk.
type ChunkOutput struct {
	DocumentID string `json:"document_id"`
	Index      int    `json:"index"`
	Key        string `json:"key"`
	Text       string `json:"text"`
}

// SplitCmd creates the split command.
func SplitCmd() *cobra.Command {
	var documentID string

	cmd := &cobra.Command{
		Use:   "split <file>",
		Short: "Split a text file into paragraph chunks",
		Long:  "Splits plain text on blank lines and prints the chunks with their stable keys. Use - to read stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.OutputFormat(cmd)
			if err != nil {
				return err
			}
			text, err := readText(args[0])
			if err != nil {
				return err
			}
			if documentID == "" {
				documentID = defaultDocumentID(args[0])
			}
			return runSplit(cmd.OutOrStdout(), documentID, text, format)
		},
	}

	cmd.Flags().StringVar(&documentID, "id", "", "Document id used in chunk keys (default file name without extension)")
	cli.AddOutputFlag(cmd)

	return cmd
}

func runSplit(w io.Writer, documentID, text, format string) error {
	chunks := service.SplitParagraphs(documentID, text)

	if format == cli.OutputJSON {
		out := make([]ChunkOutput, len(chunks))
		for i, c := range chunks {
			out[i] = ChunkOutput{DocumentID: c.DocumentID, Index: c.Index, Key: c.Key(), Text: c.Text}
		}
		return cli.PrintJSON(w, out)
	}

	if len(chunks) == 0 {
		fmt.Fprintln(w, "No paragraphs found")
		return nil
	}
	rows := make([][]string, len(chunks))
	for i, c := range chunks {
		rows[i] = []string{c.Key(), strconv.Itoa(len([]rune(c.Text))), preview(c.Text)}
	}
	fmt.Fprintln(w, cli.RenderTable([]string{"Key", "Chars", "Text"}, rows, []cli.Alignment{cli.AlignLeft, cli.AlignRight, cli.AlignLeft}))
	return nil
}

func readText(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

func defaultDocumentID(path string) string {
	if path == "-" {
		return "stdin"
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= previewRunes {
		return text
	}
	return string(runes[:previewRunes-1]) + "…"
}
