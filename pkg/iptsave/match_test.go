package iptsave_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/fabedge/iptsave/pkg/iptsave"
)

var _ = Describe("MatchRegistry", func() {
	It("should fall back to the generic parser for unknown names", func() {
		registry := iptsave.NewMatchRegistry()
		Expect(registry.Lookup("tcp")).To(Equal(iptsave.GenericMatchParser{}))
		Expect(registry.Names()).To(BeEmpty())
	})

	It("should return registered parsers by name", func() {
		registry := iptsave.DefaultMatchRegistry()
		Expect(registry.Lookup("comment")).To(Equal(iptsave.CommentMatchParser{}))
		Expect(registry.Lookup("conntrack")).To(Equal(iptsave.GenericMatchParser{}))
		Expect(registry.Names()).To(ConsistOf("comment"))
	})

	It("should ignore registrations without a parser", func() {
		registry := iptsave.NewMatchRegistry(iptsave.MatchRegistration{Name: "tcp"})
		Expect(registry.Lookup("tcp")).To(Equal(iptsave.GenericMatchParser{}))
	})
})

var _ = Describe("GenericMatchParser", func() {
	parse := func(args ...string) iptsave.MatchOptions {
		into := iptsave.MatchOptions{}
		Expect(iptsave.GenericMatchParser{}.ParseMatch("test", args, into)).To(Succeed())
		return into
	}

	It("should read key value pairs", func() {
		Expect(parse("--dport", "22", "--sport", "1024")).To(Equal(iptsave.MatchOptions{
			"dport": "22",
			"sport": "1024",
		}))
	})

	It("should negate only the next value", func() {
		Expect(parse("!", "--ctstate", "NEW", "--ctdir", "ORIGINAL")).To(Equal(iptsave.MatchOptions{
			"ctstate": "!NEW",
			"ctdir":   "ORIGINAL",
		}))
		Expect(parse("--dport", "!", "22")).To(Equal(iptsave.MatchOptions{"dport": "!22"}))
	})

	It("should use a leading bare token as the key", func() {
		Expect(parse("set", "myset", "src")).To(Equal(iptsave.MatchOptions{"set": "src"}))
	})

	// A key without a following value is never stored.
	It("should drop keys without values", func() {
		Expect(parse("--syn")).To(BeEmpty())
		Expect(parse("ESTABLISHED")).To(BeEmpty())
		Expect(parse("--dport", "22", "--syn")).To(Equal(iptsave.MatchOptions{"dport": "22"}))
	})

	It("should keep the last value for repeated keys", func() {
		Expect(parse("--dport", "22", "23")).To(Equal(iptsave.MatchOptions{"dport": "23"}))
	})

	It("should merge into existing options", func() {
		into := iptsave.MatchOptions{"dport": "22", "sport": "1"}
		Expect(iptsave.GenericMatchParser{}.ParseMatch("tcp", []string{"--sport", "2"}, into)).To(Succeed())
		Expect(into).To(Equal(iptsave.MatchOptions{"dport": "22", "sport": "2"}))
	})
})

var _ = Describe("CommentMatchParser", func() {
	parse := func(args ...string) iptsave.MatchOptions {
		into := iptsave.MatchOptions{}
		Expect(iptsave.CommentMatchParser{}.ParseMatch("comment", args, into)).To(Succeed())
		return into
	}

	It("should join quoted comments", func() {
		Expect(parse("--comment", `"allow`, "ssh", `access"`)).To(Equal(iptsave.MatchOptions{"comment": "allow ssh access"}))
	})

	It("should strip quotes from single token comments", func() {
		Expect(parse("--comment", `"kube-system/kube-dns:dns"`)).To(Equal(iptsave.MatchOptions{"comment": "kube-system/kube-dns:dns"}))
	})

	It("should keep unquoted comments", func() {
		Expect(parse("--comment", "docker")).To(Equal(iptsave.MatchOptions{"comment": "docker"}))
	})

	It("should run an unclosed quote to the end", func() {
		Expect(parse("--comment", `"open`, "ended")).To(Equal(iptsave.MatchOptions{"comment": "open ended"}))
		Expect(parse("--comment", `"`)).To(Equal(iptsave.MatchOptions{"comment": ""}))
	})

	It("should support negation like the generic parser", func() {
		Expect(parse("!", "--comment", `"x y"`)).To(Equal(iptsave.MatchOptions{"comment": "!x y"}))
	})
})
