// rf433-capture writes, replays and prints packet captures.
//
//	rf433-capture gen    [-mode m] [-profile p] [-secret s] file
//	rf433-capture verify [-mode m] [-profile p] [-secret s] file
//	rf433-capture dump   file
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/TheusHen/rf433/rf433/auth"
	"github.com/TheusHen/rf433/rf433/capture"
	"github.com/TheusHen/rf433/rf433/protocol"
	"github.com/davecgh/go-spew/spew"
)

type vectorFlags struct {
	fs      *flag.FlagSet
	mode    *string
	profile *string
	secret  *string
}

func newVectorFlags(name string) *vectorFlags {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return &vectorFlags{
		fs:      fs,
		mode:    fs.String("mode", "direct", "key schedule: direct or chain"),
		profile: fs.String("profile", "radio", "packet profile: radio or network"),
		secret:  fs.String("secret", "s", "shared secret"),
	}
}

func (v *vectorFlags) parse(args []string) (auth.Mode, protocol.Profile, string, error) {
	if err := v.fs.Parse(args); err != nil {
		return 0, protocol.Profile{}, "", err
	}
	if v.fs.NArg() != 1 {
		return 0, protocol.Profile{}, "", errors.New("missing capture file")
	}
	m, err := auth.ParseMode(*v.mode)
	if err != nil {
		return 0, protocol.Profile{}, "", err
	}
	p, err := protocol.ProfileByName(*v.profile)
	if err != nil {
		return 0, protocol.Profile{}, "", err
	}
	return m, p, v.fs.Arg(0), nil
}

func gen(args []string) error {
	vf := newVectorFlags("gen")
	mode, profile, filename, err := vf.parse(args)
	if err != nil {
		return err
	}
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := capture.NewWriter(f, capture.CompressionBest)
	if err != nil {
		return err
	}
	err = capture.GenerateVectors(w, mode, []byte(*vf.secret), profile)
	if err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	fmt.Printf("wrote %d records to %v\n", w.Count(), filename)
	return nil
}

func verify(args []string) error {
	vf := newVectorFlags("verify")
	mode, profile, filename, err := vf.parse(args)
	if err != nil {
		return err
	}
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	a, err := auth.NewWithMode(mode, []byte(*vf.secret), profile)
	if err != nil {
		return err
	}
	res, err := capture.Verify(capture.NewReader(f), a)
	if err != nil {
		return err
	}
	fmt.Printf("accepted %d rejected %d resyncs %d\n",
		res.Accepted, res.Rejected, res.Resyncs)
	if !res.OK() {
		return fmt.Errorf("%d mismatches, first at record %d",
			len(res.Mismatches), res.Mismatches[0])
	}
	return nil
}

func dump(args []string) error {
	if len(args) != 1 {
		return errors.New("missing capture file")
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	r := capture.NewReader(f)
	for n := 0; ; n++ {
		rec, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("record %d: %w", n, err)
		}
		fmt.Printf("record %d (%v)\n%v", n, rec.Flags, spew.Sdump(rec.Data))
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: rf433-capture gen|verify|dump [flags] file\n")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	var err error
	switch os.Args[1] {
	case "gen":
		err = gen(os.Args[2:])
	case "verify":
		err = verify(os.Args[2:])
	case "dump":
		err = dump(os.Args[2:])
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
