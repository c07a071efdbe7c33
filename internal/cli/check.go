package cli

import (
	"fmt"
	"io"
	"net"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gortc/mediaport/allocator"
)

// checkIP picks the concrete local address to probe: the configured one,
// or the routed default when the config says wildcard.
func checkIP(v *viper.Viper) (net.IP, error) {
	addr := v.GetString("server.addr")
	if addr != "" && addr != "0.0.0.0" {
		ip := net.ParseIP(addr)
		if ip == nil {
			return nil, fmt.Errorf("failed to parse server.addr %q", addr)
		}
		return ip, nil
	}
	return allocator.ResolveLocalAddr(net.IPv4(8, 8, 8, 8))
}

func execCheck(v *viper.Viper, f *pflag.FlagSet, stdout io.Writer) error {
	logCfg, logErr := getZapConfig(v)
	if logErr != nil {
		panic(logErr)
	}
	silent, err := f.GetBool("silent")
	if err != nil {
		panic(err)
	}
	if silent {
		// Override level to silent logs.
		logCfg.Level.SetLevel(zapcore.WarnLevel)
	}
	log, buildErr := logCfg.Build()
	if buildErr != nil {
		panic(buildErr)
	}
	count, err := f.GetInt("count")
	if err != nil {
		panic(err)
	}
	o := parseOptions(v, log)
	ip, ipErr := checkIP(v)
	if ipErr != nil {
		return ipErr
	}
	a := allocator.NewPairAllocator(allocator.Options{Log: log.Named("alloc")})
	var pairs []*allocator.Pair
	defer func() {
		for _, p := range pairs {
			if closeErr := p.Close(); closeErr != nil {
				log.Warn("failed to close pair", zap.Error(closeErr))
			}
		}
	}()
	start := o.portMin
	for i := 0; i < count; i++ {
		p, allocErr := a.Allocate(ip, start, o.portMax, o.rtcp)
		if allocErr != nil {
			return allocErr
		}
		pairs = append(pairs, p)
		if p.Control != nil {
			fmt.Fprintf(stdout, "media=%s control=%s\n", p.MediaAddr, p.ControlAddr)
		} else {
			fmt.Fprintf(stdout, "media=%s\n", p.MediaAddr)
		}
		// The held pair keeps its ports busy, so the next allocation
		// starts right after it.
		start = p.MediaAddr.Port + 2
	}
	fmt.Fprintln(stdout, "OK")
	return nil
}

func getCheckCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "verify that media port pairs can be allocated",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execCheck(v, cmd.Flags(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntP("count", "n", 1, "pairs to allocate")
	cmd.Flags().BoolP("silent", "s", true, "log only errors")
	return cmd
}
