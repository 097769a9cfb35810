package main

import (
	"bufio"
	"io"
	"strings"
)

// controls is the part of the conversation controller driven by keys.
type controls interface {
	Toggle()
	NewSession()
	ClearHistory()
}

// dispatchKey maps one key to a control. It reports false for quit keys.
func dispatchKey(b byte, c controls) bool {
	switch b {
	case '\r', '\n', ' ':
		c.Toggle()
	case 'n', 'N':
		c.NewSession()
	case 'c', 'C':
		c.ClearHistory()
	case 'q', 'Q', 0x03, 0x04:
		return false
	}
	return true
}

// readKeys feeds keys from r to c until a quit key or EOF, then calls quit.
// In raw mode every byte is a key; otherwise each line is, and an empty
// line means enter.
func readKeys(r io.Reader, raw bool, c controls, quit func()) {
	defer quit()
	if raw {
		buf := make([]byte, 1)
		for {
			n, err := r.Read(buf)
			if n == 1 && !dispatchKey(buf[0], c) {
				return
			}
			if err != nil {
				return
			}
		}
	}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		key := byte('\n')
		if line != "" {
			key = line[0]
		}
		if !dispatchKey(key, c) {
			return
		}
	}
}

// crlfWriter restores line starts while the terminal is in raw mode.
type crlfWriter struct {
	w io.Writer
}

func (c crlfWriter) Write(p []byte) (int, error) {
	s := strings.ReplaceAll(string(p), "\r\n", "\n")
	if _, err := io.WriteString(c.w, strings.ReplaceAll(s, "\n", "\r\n")); err != nil {
		return 0, err
	}
	return len(p), nil
}
