// Copyright 2023 FabEdge Team
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package inspector

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"
	"k8s.io/klog/v2/klogr"

	"github.com/fabedge/iptsave/pkg/common/about"
	"github.com/fabedge/iptsave/pkg/common/constants"
	"github.com/fabedge/iptsave/pkg/output"
	logutil "github.com/fabedge/iptsave/pkg/util/log"
)

func NewCommand() *cobra.Command {
	cfg := &Config{}
	var configFile string

	cmd := &cobra.Command{
		Use:   constants.AppName,
		Short: "Parse iptables-save output into structured records",
		Long: `iptsave reads iptables-save output from a file, from iptables-save itself or
from the chains iptables lists, and prints every line as a structured record.
In serve mode the records are kept up to date and served over HTTP.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			about.DisplayAndExitIfRequested()
			defer klog.Flush()

			if err := loadConfigFile(cmd.Flags(), configFile); err != nil {
				return err
			}

			return Execute(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&configFile, "config", "", "A yaml file providing default values of flags, keyed by flag name")
	logutil.AddFlags(fs)
	about.AddFlags(fs)
	cfg.AddFlags(fs)

	return cmd
}

// loadConfigFile sets every flag not given on the command line to its
// value in file, if any.
func loadConfigFile(fs *pflag.FlagSet, file string) error {
	if file == "" {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", file, err)
	}

	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Changed || !v.IsSet(f.Name) {
			return
		}

		value := v.GetString(f.Name)
		if strings.HasSuffix(f.Value.Type(), "Slice") {
			value = strings.Join(v.GetStringSlice(f.Name), ",")
		}

		if setErr := fs.Set(f.Name, value); setErr != nil {
			err = fmt.Errorf("invalid value of %s in config file: %w", f.Name, setErr)
		}
	})

	return err
}

// Execute parses rules once and writes them to out, or serves them until
// ctx is done when cfg.Serve is set.
func Execute(ctx context.Context, cfg *Config, out io.Writer) error {
	log := klogr.New().WithName(constants.AppName)

	if err := cfg.Validate(); err != nil {
		log.Error(err, "invalid arguments")
		return err
	}

	inspector, err := cfg.Inspector()
	if err != nil {
		log.Error(err, "failed to create inspector")
		return err
	}

	if cfg.Serve {
		return inspector.Serve(ctx)
	}

	formatter, err := output.NewFormatter(cfg.Output, cfg.Tables, cfg.Chains)
	if err != nil {
		return err
	}

	lines, err := inspector.Run(ctx)
	if err != nil {
		return err
	}

	return formatter.Format(out, lines)
}
