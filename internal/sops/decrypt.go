package sops

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Decrypt runs sops over content, which must already be known to be
// encrypted (callers should check IsEncrypted first). filePath is used only
// to help resolve the input type; it is never read from disk here — the
// ciphertext always travels as an in-memory byte slice, and the plaintext
// returned never touches disk either.
//
// keyMaterial, when non-empty, is an ASCII-armored GPG private key used to
// build a fresh ephemeral GPG home for this call only. When empty, sops is
// invoked against whatever key material is already available in the
// ambient environment (e.g. a mounted GNUPGHOME), and ReasonKeyNotFound is
// the expected outcome if there is none.
func Decrypt(ctx context.Context, filePath string, content []byte, keyMaterial string) (plaintext []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during sops decryption: %v", r)
		}
	}()

	inputType := DetectInputType(filePath, content)

	var extraEnv []string
	if keyMaterial != "" {
		home, herr := newGPGHome(ctx, keyMaterial)
		if herr != nil {
			return nil, &Error{Reason: ReasonInvalidKeyFormat, Message: herr.Error(), Remediation: remediation[ReasonInvalidKeyFormat]}
		}
		defer home.Close()
		extraEnv = home.env()
	}

	cmd := exec.CommandContext(ctx, "sops", "-d",
		"--input-type", string(inputType),
		"--output-type", string(inputType),
		"/dev/stdin")
	cmd.Stdin = bytes.NewReader(content)
	cmd.Env = append(cmd.Environ(), extraEnv...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr == nil {
		return stdout.Bytes(), nil
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	message := stderr.String()
	if message == "" {
		message = runErr.Error()
	}
	return nil, classify(exitCode, message)
}
