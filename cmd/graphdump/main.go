package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/zeusync/graphcodec/pkg/encoding"
)

// graphdump prints the tokens of a tagged graph stream, one per line:
// offset, kind and value.
func main() {
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: graphdump [file]")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(flag.Arg(0), os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "graphdump:", err)
		os.Exit(1)
	}
}

// run dumps the file at path, or stdin when path is empty or "-", to stdout.
func run(path string, stdin io.Reader, stdout io.Writer) error {
	in := stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	out := bufio.NewWriter(stdout)
	err := dump(bufio.NewReader(in), out)
	if ferr := out.Flush(); err == nil {
		err = ferr
	}
	return err
}

func dump(in io.Reader, out io.Writer) error {
	r := encoding.NewReader(in, encoding.Tagged)
	for {
		tok, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(out, tok); err != nil {
			return err
		}
	}
}
