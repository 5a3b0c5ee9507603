// Copyright © 2024-2026 the bowgo authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package cmd

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"testing"
)

func TestGetFileListFromDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.fasta", "b.fa.gz", "c.txt", "d.fna"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(">x\nACGT\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "e.fa"), []byte(">y\nACGT\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	pattern := regexp.MustCompile(`\.(fa|fasta|fna)(\.gz)?$`)
	files, err := getFileListFromDir(dir, pattern, 2)
	if err != nil {
		t.Fatal(err)
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	sort.Strings(names)

	expected := []string{"a.fasta", "b.fa.gz", "d.fna", "e.fa"}
	if len(names) != len(expected) {
		t.Fatalf("got %v, want %v", names, expected)
	}
	for i, n := range expected {
		if names[i] != n {
			t.Errorf("file %d: got %s, want %s", i, names[i], n)
		}
	}
}

func TestReadFileList(t *testing.T) {
	file := filepath.Join(t.TempDir(), "list.txt")
	if err := os.WriteFile(file, []byte("a.fq\n\n  \nb.fq\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	files, err := readFileList(file)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || files[0] != "a.fq" || files[1] != "b.fq" {
		t.Errorf("got %v, want [a.fq b.fq]", files)
	}
}

func TestMapRefListFlag(t *testing.T) {
	f := mapCmd.Flags().Lookup("ref-list")
	if f == nil {
		t.Fatal("map: --ref-list flag not registered")
	}
	if f.Shorthand != "X" {
		t.Errorf("got shorthand %q, want X", f.Shorthand)
	}
}

func TestOutStream(t *testing.T) {
	file := filepath.Join(t.TempDir(), "out.txt")

	outfh, gw, w, err := outStream(file, false, -1)
	if err != nil {
		t.Fatal(err)
	}
	if gw != nil {
		t.Error("plain stream should not wrap a gzip writer")
	}
	if _, err = outfh.WriteString("hello\n"); err != nil {
		t.Fatal(err)
	}
	if err = outfh.Flush(); err != nil {
		t.Fatal(err)
	}
	if err = w.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello\n" {
		t.Errorf("got %q", data)
	}

	gzfile := filepath.Join(t.TempDir(), "out.txt.gz")
	outfh, gw, w, err = outStream(gzfile, true, -1)
	if err != nil {
		t.Fatal(err)
	}
	if gw == nil {
		t.Fatal("gzipped stream needs a gzip writer")
	}
	outfh.WriteString("hello\n")
	outfh.Flush()
	gw.Close()
	w.Close()

	data, err = os.ReadFile(gzfile)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 || data[0] != 0x1f {
		t.Error("missing gzip magic")
	}
}
