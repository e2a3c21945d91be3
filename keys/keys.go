// Package keys generates WireGuard keys, either with the wg binary or natively.
package keys

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// Generator produces base64-encoded WireGuard keys.
type Generator interface {
	GenKey() (string, error)
	PubKey(privateKey string) (string, error)
	GenPSK() (string, error)
}

const DefaultWGPath = "/usr/bin/wg"

// Command runs the wg binary at Path, or DefaultWGPath if Path is empty.
type Command struct {
	Path string
}

var _ Generator = Command{}

func (c Command) path() string {
	if c.Path == "" {
		return DefaultWGPath
	}
	return c.Path
}

func (c Command) run(stdin string, arg string) (string, error) {
	cmd := exec.Command(c.path(), arg)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin + "\n")
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%s %s: %w: %s", c.path(), arg, err, strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("%s %s: %w", c.path(), arg, err)
	}
	key := strings.TrimSpace(string(out))
	if _, err := wgtypes.ParseKey(key); err != nil {
		return "", fmt.Errorf("%s %s: unexpected output: %w", c.path(), arg, err)
	}
	return key, nil
}

func (c Command) GenKey() (string, error) { return c.run("", "genkey") }

func (c Command) PubKey(privateKey string) (string, error) { return c.run(privateKey, "pubkey") }

func (c Command) GenPSK() (string, error) { return c.run("", "genpsk") }

// Native generates keys in-process.
type Native struct{}

var _ Generator = Native{}

func (Native) GenKey() (string, error) {
	k, err := wgtypes.GeneratePrivateKey()
	if err != nil {
		return "", fmt.Errorf("generating private key: %w", err)
	}
	return k.String(), nil
}

func (Native) PubKey(privateKey string) (string, error) {
	k, err := wgtypes.ParseKey(privateKey)
	if err != nil {
		return "", fmt.Errorf("parsing private key: %w", err)
	}
	return k.PublicKey().String(), nil
}

func (Native) GenPSK() (string, error) {
	k, err := wgtypes.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("generating preshared key: %w", err)
	}
	return k.String(), nil
}
