package source_test

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"

	"github.com/fabedge/iptsave/pkg/source"
)

var _ = Describe("SplitLines", func() {
	It("should not produce a trailing empty line", func() {
		Expect(source.SplitLines("*nat\nCOMMIT\n")).To(Equal([]string{"*nat", "COMMIT"}))
	})

	It("should keep blank lines in the middle and at the end", func() {
		Expect(source.SplitLines("*nat\n\nCOMMIT\n\n")).To(Equal([]string{"*nat", "", "COMMIT", ""}))
	})

	It("should strip carriage returns", func() {
		Expect(source.SplitLines("*nat\r\nCOMMIT\r\n")).To(Equal([]string{"*nat", "COMMIT"}))
	})

	It("should return no lines for empty input", func() {
		Expect(source.SplitLines("")).To(BeEmpty())
	})
})

var _ = Describe("File", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = ioutil.TempDir("", "iptsave")
		Expect(err).ShouldNot(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(dir)
	})

	It("should read lines from a file", func() {
		path := filepath.Join(dir, "rules.v4")
		Expect(ioutil.WriteFile(path, []byte("*filter\n:INPUT ACCEPT [0:0]\nCOMMIT\n"), 0644)).To(Succeed())

		lines, err := source.File{Path: path}.Lines(context.Background())
		Expect(err).ShouldNot(HaveOccurred())
		Expect(lines).To(Equal([]string{"*filter", ":INPUT ACCEPT [0:0]", "COMMIT"}))
	})

	It("should read lines from stdin", func() {
		lines, err := source.File{Path: source.Stdin, Stdin: strings.NewReader("*nat\nCOMMIT")}.Lines(context.Background())
		Expect(err).ShouldNot(HaveOccurred())
		Expect(lines).To(Equal([]string{"*nat", "COMMIT"}))
	})

	It("should name the missing file in the error", func() {
		path := filepath.Join(dir, "missing")
		_, err := source.File{Path: path}.Lines(context.Background())
		Expect(err).Should(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring(path))
		Expect(os.IsNotExist(errors.Cause(err))).To(BeTrue())
	})

	It("should stop on a cancelled context", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := source.File{Path: source.Stdin, Stdin: strings.NewReader("")}.Lines(ctx)
		Expect(err).To(Equal(context.Canceled))
	})
})
