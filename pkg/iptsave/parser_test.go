package iptsave_test

import (
	"errors"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/fabedge/iptsave/pkg/iptsave"
	testutil "github.com/fabedge/iptsave/pkg/util/test"
)

var _ = Describe("Parser", func() {
	var parser *iptsave.Parser

	BeforeEach(func() {
		parser = iptsave.NewParser()
	})

	parseError := func(err error) *iptsave.ParseError {
		var perr *iptsave.ParseError
		Expect(errors.As(err, &perr)).To(BeTrue())
		return perr
	}

	It("should classify blank lines as empty and populate nothing else", func() {
		lines, err := parser.ParseLines([]string{"", "   ", "\t", " \t "})
		Expect(err).ShouldNot(HaveOccurred())
		Expect(lines).To(HaveLen(4))

		for i, line := range lines {
			Expect(line).To(Equal(iptsave.ParsedLine{
				Type:   iptsave.LineTypeEmpty,
				Number: i + 1,
				Raw:    line.Raw,
			}))
		}
	})

	It("should classify commit lines case-insensitively and close the open table", func() {
		lines, err := parser.ParseLines([]string{
			"*filter",
			"COMMIT",
			"# after commit",
			"*nat",
			"commit",
			":INPUT ACCEPT [0:0]",
			"*raw",
			"Commit",
			"-A PREROUTING -j ACCEPT",
		})
		Expect(err).ShouldNot(HaveOccurred())

		Expect(lines[1].Type).To(Equal(iptsave.LineTypeCommit))
		Expect(lines[4].Type).To(Equal(iptsave.LineTypeCommit))
		Expect(lines[7].Type).To(Equal(iptsave.LineTypeCommit))

		Expect(lines[2].Type).To(Equal(iptsave.LineTypeComment))
		Expect(lines[2].OriginalTableName).To(BeEmpty())
		Expect(lines[5].Type).To(Equal(iptsave.LineTypeChain))
		Expect(lines[5].OriginalTableName).To(BeEmpty())
		Expect(lines[8].Type).To(Equal(iptsave.LineTypeCommand))
		Expect(lines[8].OriginalTableName).To(BeEmpty())
	})

	It("should replace the open table when a new table line is seen", func() {
		lines, err := parser.ParseLines([]string{"*nat", "*filter", "# in filter"})
		Expect(err).ShouldNot(HaveOccurred())

		Expect(lines[0].Table).To(Equal(&iptsave.Table{Name: "nat"}))
		Expect(lines[1].Table).To(Equal(&iptsave.Table{Name: "filter"}))
		Expect(lines[1].OriginalTableName).To(BeEmpty())
		Expect(lines[2].OriginalTableName).To(Equal("filter"))
	})

	It("should trim comment text and table names", func() {
		lines, err := parser.ParseLines([]string{"#   Generated by iptables-save  ", "*  mangle "})
		Expect(err).ShouldNot(HaveOccurred())

		Expect(lines[0].Comment).To(Equal("Generated by iptables-save"))
		Expect(lines[1].Table.Name).To(Equal("mangle"))
	})

	Context("chain lines", func() {
		It("should read name, policy and counters", func() {
			lines, err := parser.ParseLines([]string{":INPUT ACCEPT [12:720]"})
			Expect(err).ShouldNot(HaveOccurred())

			chain := lines[0].Chain
			Expect(lines[0].Type).To(Equal(iptsave.LineTypeChain))
			Expect(chain.Name).To(Equal("INPUT"))
			Expect(chain.DefaultPolicy).To(Equal("ACCEPT"))
			Expect(chain.HasPolicy()).To(BeTrue())
			Expect(*chain.Packets).To(Equal(uint64(12)))
			Expect(*chain.Bytes).To(Equal(uint64(720)))
		})

		It("should leave the policy empty exactly when the policy token is -", func() {
			lines, err := parser.ParseLines([]string{
				":DOCKER - [0:0]",
				":KUBE-SERVICES - [0:0]",
				":FORWARD DROP [0:0]",
			})
			Expect(err).ShouldNot(HaveOccurred())

			Expect(lines[0].Chain.DefaultPolicy).To(Equal(iptsave.NoPolicy))
			Expect(lines[0].Chain.HasPolicy()).To(BeFalse())
			Expect(lines[1].Chain.Name).To(Equal("KUBE-SERVICES"))
			Expect(lines[1].Chain.HasPolicy()).To(BeFalse())
			Expect(lines[2].Chain.DefaultPolicy).To(Equal("DROP"))
		})

		It("should accept chains without counters", func() {
			lines, err := parser.ParseLines([]string{":cali-FORWARD - "})
			Expect(err).ShouldNot(HaveOccurred())

			Expect(lines[0].Chain.Name).To(Equal("cali-FORWARD"))
			Expect(lines[0].Chain.Packets).To(BeNil())
			Expect(lines[0].Chain.Bytes).To(BeNil())
		})

		It("should attach the open table", func() {
			lines, err := parser.ParseLines([]string{"*filter", ":INPUT ACCEPT [0:0]"})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(lines[1].OriginalTableName).To(Equal("filter"))
		})

		It("should reject malformed chain lines and abort the parse", func() {
			for _, raw := range []string{":BADLINE", ":INPUT ACCEPT", ":IN.PUT ACCEPT [0:0]"} {
				lines, err := parser.ParseLines([]string{"*filter", raw, "COMMIT"})
				Expect(lines).To(BeNil())
				Expect(errors.Is(err, iptsave.ErrMalformedChainLine)).To(BeTrue(), raw)

				perr := parseError(err)
				Expect(perr.Line).To(Equal(2))
				Expect(perr.RawLine).To(Equal(raw))
			}
		})
	})

	Context("command lines", func() {
		It("should keep the raw argument vector and the open table", func() {
			lines, err := parser.ParseLines([]string{"*nat", "-A  POSTROUTING -s 172.17.0.0/16   -j MASQUERADE"})
			Expect(err).ShouldNot(HaveOccurred())

			line := lines[1]
			Expect(line.Type).To(Equal(iptsave.LineTypeCommand))
			Expect(line.OriginalTableName).To(Equal("nat"))
			Expect(line.Command.RawArguments).To(Equal([]string{"-A", "POSTROUTING", "-s", "172.17.0.0/16", "-j", "MASQUERADE"}))
			Expect(line.Command.Arguments.ChainName).To(Equal("POSTROUTING"))
			Expect(line.Command.Arguments.Source).To(Equal("172.17.0.0/16"))
			Expect(line.Command.Arguments.Jump.TargetName).To(Equal("MASQUERADE"))
		})

		It("should abort the whole parse on the first bad command", func() {
			lines, err := parser.ParseLines([]string{
				"-A INPUT -j ACCEPT",
				"-A INPUT --bogus 1 -j ACCEPT",
				"-A INPUT --worse 2",
			})
			Expect(lines).To(BeNil())
			Expect(errors.Is(err, iptsave.ErrUnhandledFlag)).To(BeTrue())

			perr := parseError(err)
			Expect(perr.Line).To(Equal(2))
			Expect(perr.Token).To(Equal("--bogus"))
			Expect(perr.RawLine).To(Equal("-A INPUT --bogus 1 -j ACCEPT"))
			Expect(err.Error()).To(ContainSubstring("--bogus"))
			Expect(err.Error()).To(ContainSubstring("line 2"))
		})
	})

	Context("end to end", func() {
		It("should reject --dport outside of a match group", func() {
			lines, err := parser.ParseLines([]string{
				"*filter",
				":INPUT ACCEPT [0:0]",
				"-A INPUT -p tcp --dport 22 -j ACCEPT",
				"COMMIT",
			})
			Expect(lines).To(BeNil())
			Expect(errors.Is(err, iptsave.ErrUnhandledFlag)).To(BeTrue())
			Expect(parseError(err).Token).To(Equal("--dport"))
		})

		It("should parse a table with a match group", func() {
			lines, err := parser.ParseLines([]string{
				"*filter",
				":INPUT ACCEPT [0:0]",
				"-A INPUT -p tcp -m tcp --dport 22 -j ACCEPT",
				"COMMIT",
			})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(lines).To(HaveLen(4))

			Expect(lines[0].Type).To(Equal(iptsave.LineTypeTable))
			Expect(lines[0].Table.Name).To(Equal("filter"))
			Expect(lines[1].Chain.Name).To(Equal("INPUT"))
			Expect(lines[1].Chain.DefaultPolicy).To(Equal("ACCEPT"))
			Expect(lines[3].Type).To(Equal(iptsave.LineTypeCommit))

			args := lines[2].Command.Arguments
			Expect(args.InsertType).To(Equal(iptsave.InsertAppend))
			Expect(args.ChainName).To(Equal("INPUT"))
			Expect(args.Protocol).To(Equal("tcp"))
			Expect(args.Jump).To(Equal(&iptsave.Jump{TargetName: "ACCEPT"}))
			Expect(args.Matches).To(Equal(iptsave.Matches{"tcp": {"dport": "22"}}))
		})

		It("should negate only the destination", func() {
			lines, err := parser.ParseLines([]string{"-A FORWARD -s 10.0.0.0/8 ! -d 10.0.0.1 -j DROP"})
			Expect(err).ShouldNot(HaveOccurred())

			args := lines[0].Command.Arguments
			Expect(args.Source).To(Equal("10.0.0.0/8"))
			Expect(args.Destination).To(Equal("!10.0.0.1"))
			Expect(args.Jump.TargetName).To(Equal("DROP"))
		})

		It("should attach the table only to comments after the table line", func() {
			lines, err := parser.ParseLines([]string{"# comment", "*nat", "# comment2"})
			Expect(err).ShouldNot(HaveOccurred())

			Expect(lines[0].Comment).To(Equal("comment"))
			Expect(lines[0].OriginalTableName).To(BeEmpty())
			Expect(lines[2].Comment).To(Equal("comment2"))
			Expect(lines[2].OriginalTableName).To(Equal("nat"))
		})

		It("should parse a full dump", func() {
			lines, err := iptsave.NewParser(iptsave.WithMatchRegistry(iptsave.DefaultMatchRegistry())).
				ParseLines(testutil.SampleLines())
			Expect(err).ShouldNot(HaveOccurred())
			Expect(lines).To(HaveLen(len(testutil.SampleLines())))

			var ssh, reject, web *iptsave.CommandArguments
			for i := range lines {
				if lines[i].Command == nil {
					continue
				}
				args := &lines[i].Command.Arguments
				switch {
				case args.Matches["comment"] != nil:
					ssh = args
				case args.Jump != nil && args.Jump.TargetName == "REJECT":
					reject = args
				case args.Goto != nil:
					web = args
				}
			}

			Expect(ssh.Matches["comment"]["comment"]).To(Equal("allow ssh"))
			Expect(reject.Jump.Arguments).To(Equal([]string{"--reject-with", "icmp-port-unreachable"}))
			Expect(web.InInterface).To(Equal("!docker0"))
			Expect(web.OutInterface).To(Equal("docker0"))
			Expect(web.Goto.ChainName).To(Equal("DOCKER-WEB"))
		})
	})

	It("should produce identical output for repeated parses", func() {
		input := append(testutil.SampleLines(), "*nat", "# dangling")

		first, err := parser.ParseLines(input)
		Expect(err).ShouldNot(HaveOccurred())
		second, err := parser.ParseLines(input)
		Expect(err).ShouldNot(HaveOccurred())
		third, err := iptsave.ParseLines(input)
		Expect(err).ShouldNot(HaveOccurred())

		Expect(second).To(Equal(first))
		Expect(third).To(Equal(first))
	})

	It("should keep table state separate for concurrent parses", func() {
		const workers = 8

		var wg sync.WaitGroup
		results := make([][]iptsave.ParsedLine, workers)
		errs := make([]error, workers)

		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				defer GinkgoRecover()

				input := []string{fmt.Sprintf("*table%d", w)}
				for i := 0; i < 50; i++ {
					input = append(input, fmt.Sprintf("-A CHAIN%d -j ACCEPT", i))
				}
				results[w], errs[w] = parser.ParseLines(input)
			}(w)
		}
		wg.Wait()

		for w := 0; w < workers; w++ {
			Expect(errs[w]).ShouldNot(HaveOccurred())
			for _, line := range results[w][1:] {
				Expect(line.OriginalTableName).To(Equal(fmt.Sprintf("table%d", w)))
			}
		}
	})
})
