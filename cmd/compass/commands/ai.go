package commands

import (
	"bufio"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyluth/compass/internal/gateway"
	"github.com/dyluth/compass/internal/printer"
	"github.com/dyluth/compass/internal/session"
	"github.com/dyluth/compass/pkg/canvas"
)

var (
	refineRevert  bool
	importReplace bool
	wizardFrom    int
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Ask the AI for structural gaps in the active project",
	Long: `Ask the AI for up to three structural gaps, such as a risk with no
contingency or an aim with no matching method.

Resolve a gap with 'compass fix "<gap text>"'.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

var fixCmd = &cobra.Command{
	Use:   "fix WARNING",
	Short: "Ask the AI to resolve one gap",
	Long: `Ask the AI to resolve one gap reported by 'compass check'.

Blocks the AI rewrites have their items replaced; links to replaced items are removed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFix,
}

var refineCmd = &cobra.Command{
	Use:   "refine",
	Short: "Rewrite every non-empty block in clearer academic language",
	Long: `Rewrite every non-empty block of the active project in clearer academic language.

The previous blocks and links are kept; 'compass refine --revert' restores them once.`,
	Args: cobra.NoArgs,
	RunE: runRefine,
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Extract canvas items from a document",
	Long: `Extract canvas items from a document (PDF, text or markdown) into the active project.

Items are appended to their blocks. Use --replace to overwrite the blocks the
document fills instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Fill the active project by answering guided questions",
	Long: `Walk through guided questions. Each answer is mapped by the AI onto the
question's blocks and appended to the active project.

Press Enter on an empty line to skip a question, or type 'q' to stop.`,
	Args: cobra.NoArgs,
	RunE: runWizard,
}

var draftCmd = &cobra.Command{
	Use:       "draft abstract|grant",
	Short:     "Draft an abstract or grant outline from the active project",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(gateway.DraftAbstract), string(gateway.DraftGrant)},
	RunE:      runDraft,
}

var jargonCmd = &cobra.Command{
	Use:   "jargon TEXT",
	Short: "List buzzwords in a text with plainer alternatives",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runJargon,
}

var falsifyCmd = &cobra.Command{
	Use:   "falsify HYPOTHESIS",
	Short: "Check whether a hypothesis could be proven false",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runFalsify,
}

func init() {
	refineCmd.Flags().BoolVar(&refineRevert, "revert", false, "Restore the project as it was before the last refine")
	importCmd.Flags().BoolVar(&importReplace, "replace", false, "Replace the items of the blocks the document fills")
	wizardCmd.Flags().IntVar(&wizardFrom, "from", 0, "Start at this question number")

	rootCmd.AddCommand(checkCmd, fixCmd, refineCmd, importCmd, wizardCmd, draftCmd, jargonCmd, falsifyCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer ws.Close()

	if _, err := ws.openProject(cmd.Context(), projectFlag); err != nil {
		return err
	}

	printer.Step("Checking for gaps...\n")
	findings, err := ws.session.CheckGaps(cmd.Context())
	if err != nil {
		return aiError(err)
	}
	if len(findings) == 0 {
		printer.Success("No gaps found\n")
		return nil
	}

	printer.Warning("%d gap(s) found:\n", len(findings))
	printer.Findings(findings)
	printer.Info("\nResolve one with:\n  compass fix \"%s\"\n", findings[0])
	return nil
}

func runFix(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer ws.Close()

	if _, err := ws.openProject(cmd.Context(), projectFlag); err != nil {
		return err
	}

	printer.Step("Resolving gap...\n")
	fixed, err := ws.session.FixGap(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return aiError(err)
	}
	if len(fixed) == 0 {
		printer.Info("The AI suggested no changes\n")
		return nil
	}
	for _, id := range canvas.BlockIDs() {
		if texts, ok := fixed[id]; ok {
			printer.Success("Rewrote %s (%d item(s))\n", id, len(texts))
		}
	}
	return nil
}

func runRefine(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer ws.Close()

	if _, err := ws.openProject(cmd.Context(), projectFlag); err != nil {
		return err
	}

	if refineRevert {
		if err := ws.session.RevertRefine(cmd.Context()); err != nil {
			if errors.Is(err, session.ErrNothingToRevert) {
				return printer.Error("nothing to revert", "No refine has been applied to this project since it was last reverted.", nil)
			}
			return err
		}
		printer.Success("Restored the project as it was before the last refine\n")
		return nil
	}

	printer.Step("Refining...\n")
	n, err := ws.session.Refine(cmd.Context())
	if err != nil {
		return aiError(err)
	}
	if n == 0 {
		printer.Info("Nothing to refine: every block is empty\n")
		return nil
	}
	printer.Success("Refined %d block(s)\n", n)
	printer.Info("Undo with: compass refine --revert\n")
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	doc, err := readDocument(args[0])
	if err != nil {
		return printer.Error(fmt.Sprintf("cannot read %s", args[0]), err.Error(), nil)
	}

	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer ws.Close()

	if _, err := ws.openProject(cmd.Context(), projectFlag); err != nil {
		return err
	}

	mode := canvas.ApplyAppend
	if importReplace {
		mode = canvas.ApplyReplace
	}

	printer.Step("Extracting items from %s...\n", doc.Name)
	n, err := ws.session.Import(cmd.Context(), doc, mode)
	if err != nil {
		if errors.Is(err, session.ErrNothingImported) {
			return printer.Error("nothing imported", "No canvas items could be extracted from the document.", nil)
		}
		return aiError(err)
	}
	printer.Success("Imported %d item(s)\n", n)
	return nil
}

// readDocument loads path and guesses its MIME type from the extension, then the content.
func readDocument(path string) (gateway.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return gateway.Document{}, err
	}
	if len(data) == 0 {
		return gateway.Document{}, fmt.Errorf("file is empty")
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	return gateway.Document{Name: filepath.Base(path), MimeType: mimeType, Data: data}, nil
}

func runWizard(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer ws.Close()

	p, err := ws.openProject(cmd.Context(), projectFlag)
	if err != nil {
		return err
	}
	printer.Heading("Wizard for '%s'", p.Name)

	in := bufio.NewScanner(cmd.InOrStdin())
	total, added := 0, 0
	for _, q := range canvas.WizardQuestions() {
		if q.ID < wizardFrom {
			continue
		}

		printer.Println()
		printer.Heading("%d. %s", q.ID, q.Question)
		if q.Description != "" {
			printer.Info("%s\n", q.Description)
		}
		for _, h := range q.Hints {
			printer.Info("  • %s\n", h)
		}
		printer.Info("> ")

		if !in.Scan() {
			break
		}
		answer := strings.TrimSpace(in.Text())
		if answer == "q" {
			break
		}
		if answer == "" {
			continue
		}

		n, err := ws.session.Answer(cmd.Context(), q, answer)
		if err != nil {
			// Earlier answers stay applied; the flush on exit saves them.
			return aiError(err)
		}
		total++
		added += n
		printer.Success("Added %d item(s)\n", n)
	}

	printer.Println()
	printer.Success("Answered %d question(s), added %d item(s)\n", total, added)
	return nil
}

func runDraft(cmd *cobra.Command, args []string) error {
	kind := gateway.DraftKind(args[0])
	if err := kind.Validate(); err != nil {
		return printer.Error(
			fmt.Sprintf("unknown draft kind '%s'", args[0]),
			"",
			[]string{"Valid kinds: abstract, grant"},
		)
	}

	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer ws.Close()

	if _, err := ws.openProject(cmd.Context(), projectFlag); err != nil {
		return err
	}

	text, err := ws.session.Draft(cmd.Context(), kind)
	if err != nil {
		return aiError(err)
	}
	printer.Println(text)
	return nil
}

func runJargon(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer ws.Close()

	terms, err := ws.session.Jargon(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return aiError(err)
	}
	if len(terms) == 0 {
		printer.Success("No jargon found\n")
		return nil
	}
	for _, t := range terms {
		printer.Printf("  %-24s -> %s\n", t.Term, t.Alternative)
	}
	return nil
}

func runFalsify(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer ws.Close()

	verdict, err := ws.session.Falsify(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return aiError(err)
	}
	if verdict.IsFalsifiable {
		printer.Success("Falsifiable\n")
		return nil
	}
	printer.Warning("Not falsifiable\n")
	if verdict.Suggestion != "" {
		printer.Info("Suggestion: %s\n", verdict.Suggestion)
	}
	return nil
}
