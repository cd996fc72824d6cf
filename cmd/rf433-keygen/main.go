// rf433-keygen provisions a sender or receiver with a shared secret and a
// fresh state file.
package main

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/TheusHen/rf433/rf433/auth"
	"github.com/TheusHen/rf433/rf433/crypto"
	"github.com/TheusHen/rf433/rf433/protocol"
	"github.com/TheusHen/rf433/rf433/statefile"
)

func readPassphrase() ([]byte, error) {
	if p := os.Getenv("RF433_PASSPHRASE"); p != "" {
		return []byte(p), nil
	}
	fmt.Fprint(os.Stderr, "passphrase: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return nil, err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return nil, errors.New("empty passphrase")
	}
	return []byte(line), nil
}

func _main() error {
	out := flag.String("o", statefile.DefaultPath, "state file to create")
	mode := flag.String("mode", "direct", "key schedule: direct or chain")
	profile := flag.String("profile", "radio", "packet profile: radio or network")
	salt := flag.String("salt", "", "salt mixed into the passphrase")
	random := flag.Bool("random", false, "generate a random secret and print it")
	secretHex := flag.String("secret", "", "use this hex encoded secret")
	force := flag.Bool("f", false, "overwrite an existing state file")
	flag.Parse()

	m, err := auth.ParseMode(*mode)
	if err != nil {
		return err
	}
	p, err := protocol.ProfileByName(*profile)
	if err != nil {
		return err
	}
	if statefile.Exists(*out) && !*force {
		return fmt.Errorf("%v exists, use -f to overwrite it", *out)
	}

	var secret []byte
	switch {
	case *secretHex != "":
		secret, err = hex.DecodeString(*secretHex)
		if err != nil {
			return fmt.Errorf("secret invalid: %v", err)
		}
	case *random:
		secret = make([]byte, crypto.DefaultSecretSize)
		if _, err := rand.Read(secret); err != nil {
			return err
		}
		fmt.Printf("secret: %x\n", secret)
	default:
		passphrase, err := readPassphrase()
		if err != nil {
			return err
		}
		secret, err = crypto.DeriveSecret(passphrase, []byte(*salt),
			crypto.DefaultSecretSize)
		if err != nil {
			return err
		}
	}

	s, err := statefile.New(m, secret, p)
	if err != nil {
		return err
	}
	if err := statefile.Save(*out, s); err != nil {
		return err
	}
	fmt.Printf("wrote %v state to %v\n", m, *out)
	return nil
}

func main() {
	if err := _main(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
