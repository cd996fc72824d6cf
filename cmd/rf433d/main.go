// rf433d receives authenticated packets over UDP and queues them for radio
// transmission, optionally forwarding them to remote repeaters.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/TheusHen/rf433/rf433"
	"github.com/TheusHen/rf433/rf433/config"
	"github.com/mitchellh/go-homedir"
)

const defaultConfFile = "~/.rf433/rf433d.conf"

func loadSettings() (*config.Settings, error) {
	filename := flag.String("cfg", defaultConfFile, "config file")
	export := flag.String("export", "", "export config file")
	version := flag.Bool("version", false, "show version")
	flag.Parse()

	if *version {
		fmt.Fprintf(os.Stderr, "rf433d %s (%s)\n", rf433.Version, runtime.Version())
		os.Exit(0)
	}

	if *export != "" {
		fmt.Printf("exporting config file to: %v\n", *export)
		err := ioutil.WriteFile(*export,
			[]byte(config.DefaultConfigFileContent), 0600)
		if err != nil {
			return nil, err
		}
		os.Exit(0)
	}

	cfgFile, err := homedir.Expand(*filename)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfgFile); errors.Is(err, os.ErrNotExist) &&
		*filename == defaultConfFile {
		fmt.Printf("Initial run, creating default config: %v\n", cfgFile)
		if err := os.MkdirAll(filepath.Dir(cfgFile), 0700); err != nil {
			return nil, err
		}
		err = ioutil.WriteFile(cfgFile,
			[]byte(config.DefaultConfigFileContent), 0600)
		if err != nil {
			return nil, err
		}
	}

	s := config.New()
	if err := s.Load(cfgFile); err != nil {
		return nil, fmt.Errorf("%v: %v", cfgFile, err)
	}
	return s, nil
}

func _main() error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	d, err := newDaemon(settings)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return d.run(ctx)
}

func main() {
	if err := _main(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
