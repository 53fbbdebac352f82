package deps

import (
	"os/exec"
	"strings"
)

// HeadCommand extracts the executable token from a command template.
//
// The TTS engine is configured as a template such as
// "piper --model en_US {text_file} --output_file {output}". Only the leading
// token names a binary on PATH; the remainder is flags and placeholders that
// the synthesizer substitutes at run time. Splitting mirrors how the template
// is rendered before execution, so the token checked here is the token that
// will actually be executed.
func HeadCommand(template string) string {
	fields := strings.Fields(template)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Available reports whether a command's head binary resolves on PATH.
func Available(command string) bool {
	head := HeadCommand(command)
	if head == "" {
		return false
	}
	_, err := exec.LookPath(head)
	return err == nil
}
