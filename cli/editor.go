package cli

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/anmitsu/go-shlex"
	. "github.com/stevegt/goadapt"
)

// defaultEditor is used when neither DEEPSEEK_EDITOR nor EDITOR is
// set.
const defaultEditor = "vi"

// editorCommand picks the editor command line.
func editorCommand(configured string) string {
	if configured != "" {
		return configured
	}
	if editor := os.Getenv("EDITOR"); editor != "" {
		return editor
	}
	return defaultEditor
}

// EditFile opens fn in editor and waits for it to exit.  editor may
// carry arguments, e.g. "code --wait"; fn is appended to them.
func EditFile(editor, fn string) (err error) {
	defer Return(&err)

	// use shlex to split the editor command
	cmdline, err := shlex.Split(editor, true)
	Ck(err)
	if len(cmdline) == 0 {
		return fmt.Errorf("empty editor command")
	}
	args := append(cmdline[1:], fn)
	Debug("running editor: %s %v", cmdline[0], args)
	cmd := exec.Command(cmdline[0], args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	err = cmd.Run()
	Ck(err)
	return
}

// editPrompt lets the user write a prompt in an editor, starting from
// initial, and returns the saved text.
func editPrompt(editor, initial string) (prompt string, err error) {
	defer Return(&err)
	fh, err := os.CreateTemp("", "deepseek-prompt-*.md")
	Ck(err)
	fn := fh.Name()
	defer os.Remove(fn)
	_, err = fh.WriteString(initial)
	Ck(err)
	err = fh.Close()
	Ck(err)

	err = EditFile(editor, fn)
	Ck(err)

	buf, err := os.ReadFile(fn)
	Ck(err)
	prompt = strings.TrimSpace(string(buf))
	return
}
