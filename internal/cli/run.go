// Package cli implements command line interface for mediaportd.
package cli

import (
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/libp2p/go-reuseport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"gortc.io/ice"

	"github.com/gortc/mediaport/allocator"
	"github.com/gortc/mediaport/internal/manage"
	"github.com/gortc/mediaport/internal/reload"
)

// defaultEchoPort is used when the configured listen address has no port.
const defaultEchoPort = 7878

func normalize(address string) string {
	if address == "" {
		address = "0.0.0.0"
	}
	if !strings.Contains(address, ":") {
		address = fmt.Sprintf("%s:%d", address, defaultEchoPort)
	}
	return address
}

type options struct {
	addr      string
	listen    string
	portMin   int
	portMax   int
	rtcp      bool
	reusePort bool
}

func parseOptions(v *viper.Viper, l *zap.Logger) options {
	o := options{
		addr:      v.GetString("server.addr"),
		listen:    v.GetString("server.listen"),
		portMin:   v.GetInt("server.port.min"),
		portMax:   v.GetInt("server.port.max"),
		rtcp:      v.GetBool("server.rtcp"),
		reusePort: v.GetBool("server.reuseport"),
	}
	if o.portMin >= o.portMax {
		l.Fatal("bad port range",
			zap.Int("min", o.portMin),
			zap.Int("max", o.portMax),
		)
	}
	if !o.rtcp {
		l.Info("allocating media sockets without control pair")
	}
	return o
}

// serveEcho reads datagrams from c and writes them back to the sender.
func serveEcho(log *zap.Logger, c net.PacketConn) {
	buf := make([]byte, 2048)
	for {
		n, addr, err := c.ReadFrom(buf)
		if err != nil {
			log.Warn("readFrom failed", zap.Error(err))
			return
		}
		if _, err = c.WriteTo(buf[:n], addr); err != nil {
			log.Warn("writeTo failed", zap.Error(err))
		}
	}
}

// ListenUDPAndEcho listens on laddr and echoes incoming packets back.
func ListenUDPAndEcho(log *zap.Logger, serverNet, laddr string, reuse bool) error {
	var (
		c   net.PacketConn
		err error
	)
	if reuseport.Available() && reuse {
		c, err = reuseport.ListenPacket(serverNet, laddr)
		if err != nil {
			// Trying to listen without reuseport.
			// Sometimes reuseport.Available() can be true, but for subset
			// of interfaces it is not available.
			reusePortErr := err
			c, err = net.ListenPacket(serverNet, laddr)
			if err == nil {
				log.Warn("failed to use REUSEPORT, falling back to non-reuseport", zap.Error(reusePortErr))
			}
		}
	} else {
		c, err = net.ListenPacket(serverNet, laddr)
	}
	if err != nil {
		return err
	}
	log.Info("echo listening", zap.Stringer("addr", c.LocalAddr()))
	serveEcho(log, c)
	return nil
}

// gatherAddrs expands the configured server address into concrete local
// addresses: the allocators refuse wildcards, so 0.0.0.0 is resolved to
// interface addresses.
func gatherAddrs(v *viper.Viper, l *zap.Logger) []net.IP {
	addr := v.GetString("server.addr")
	if !strings.HasPrefix(addr, "0.0.0.0") {
		ip := net.ParseIP(addr)
		if ip == nil {
			l.Fatal("failed to parse server.addr", zap.String("addr", addr))
		}
		return []net.IP{ip}
	}
	l.Warn("running on all interfaces")
	l.Warn("picking addr from ICE")
	addrs, iceErr := ice.Gather()
	if iceErr != nil {
		l.Fatal("failed to gather interface addresses", zap.Error(iceErr))
	}
	var ips []net.IP
	for _, a := range addrs {
		l.Warn("got", zap.Stringer("a", a))
		if a.IP.IsLoopback() {
			continue
		}
		if a.IP.IsLinkLocalMulticast() || a.IP.IsLinkLocalUnicast() {
			continue
		}
		if a.IP.To4() == nil {
			continue
		}
		l.Warn("using", zap.Stringer("a", a))
		ips = append(ips, a.IP)
	}
	if len(ips) == 0 {
		l.Fatal("no usable interface addresses")
	}
	return ips
}

const keyPrometheusActive = "server.prometheus.active"

func runRoot(v *viper.Viper) {
	logCfg, logErr := getZapConfig(v)
	if logErr != nil {
		panic(logErr)
	}
	l, buildErr := logCfg.Build()
	if buildErr != nil {
		panic(buildErr)
	}
	if cfgPath := v.ConfigFileUsed(); len(cfgPath) > 0 {
		l.Info("config file used", zap.String("path", v.ConfigFileUsed()))
	} else {
		l.Info("default configuration used")
	}
	if strings.Split(v.GetString("version"), ".")[0] != "1" {
		l.Fatal("unsupported config file version", zap.String("v", v.GetString("version")))
	}
	reg := prometheus.NewPedanticRegistry()
	if prometheusAddr := v.GetString("server.prometheus.addr"); prometheusAddr != "" {
		l.Warn("running prometheus metrics", zap.String("addr", prometheusAddr))
		go func() {
			promHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{
				ErrorLog:      zap.NewStdLog(l),
				ErrorHandling: promhttp.HTTPErrorOnError,
			})
			if listenErr := http.ListenAndServe(prometheusAddr, promHandler); listenErr != nil {
				l.Error("prometheus failed to listen",
					zap.String("addr", prometheusAddr),
					zap.Error(listenErr),
				)
			}
		}()
	} else {
		v.SetDefault(keyPrometheusActive, false)
		if v.GetBool(keyPrometheusActive) {
			l.Warn("ignoring " + keyPrometheusActive + " because prometheus http endpoint is not configured")
		}
	}
	if pprofAddr := v.GetString("server.pprof"); pprofAddr != "" {
		l.Warn("running pprof", zap.String("addr", pprofAddr))
		go func() {
			pprofMux := http.NewServeMux()
			pprofMux.HandleFunc("/debug/pprof/", pprof.Index)
			pprofMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
			pprofMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
			pprofMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
			pprofMux.HandleFunc("/debug/pprof/trace", pprof.Trace)
			if listenErr := http.ListenAndServe(pprofAddr, pprofMux); listenErr != nil {
				l.Error("pprof failed to listen",
					zap.String("addr", pprofAddr),
					zap.Error(listenErr),
				)
			}
		}()
	}
	o := parseOptions(v, l)

	// Config reload updates the log level in place; allocated pairs are
	// left untouched, their ownership is with the echo loops already.
	n := reload.NewNotifier(l.Named("reload"))
	go func() {
		for range n.C {
			l.Info("trying to update config")
			if readErr := v.ReadInConfig(); readErr != nil {
				l.Error("failed to read config", zap.Error(readErr))
				continue
			}
			newCfg, cfgErr := getZapConfig(v)
			if cfgErr != nil {
				l.Error("failed to parse config", zap.Error(cfgErr))
				continue
			}
			logCfg.Level.SetLevel(newCfg.Level.Level())
			l.Info("config updated", zap.Stringer("level", newCfg.Level.Level()))
		}
	}()
	if v.ConfigFileUsed() != "" {
		v.OnConfigChange(func(e fsnotify.Event) {
			l.Info("config file changed",
				zap.String("name", e.Name),
				zap.String("op", e.Op.String()),
			)
			n.Notify()
		})
		v.WatchConfig()
	}

	pairAlloc := allocator.NewPairAllocator(allocator.Options{
		Log:      l.Named("alloc"),
		Registry: reg,
	})
	var (
		pairs    []*allocator.Pair
		pairsMux sync.Mutex
	)
	status := func() string {
		pairsMux.Lock()
		defer pairsMux.Unlock()
		s := make([]string, 0, len(pairs))
		for _, p := range pairs {
			if p.Control != nil {
				s = append(s, fmt.Sprintf("media=%s control=%s", p.MediaAddr, p.ControlAddr))
			} else {
				s = append(s, fmt.Sprintf("media=%s", p.MediaAddr))
			}
		}
		return strings.Join(s, "\n")
	}
	if apiAddr := v.GetString("api.addr"); apiAddr != "" {
		m := manage.NewManager(l.Named("api"), n, status)
		l.Info("api listening", zap.String("addr", apiAddr))
		go func() {
			if listenErr := http.ListenAndServe(apiAddr, m); listenErr != nil {
				l.Error("failed to listen on management API addr",
					zap.String("addr", apiAddr),
					zap.Error(listenErr),
				)
			}
		}()
	}

	wg := new(sync.WaitGroup)
	for _, ip := range gatherAddrs(v, l) {
		lg := l.With(zap.Stringer("ip", ip))
		p, allocErr := pairAlloc.Allocate(ip, o.portMin, o.portMax, o.rtcp)
		if allocErr != nil {
			lg.Fatal("failed to allocate pair", zap.Error(allocErr))
		}
		pairsMux.Lock()
		pairs = append(pairs, p)
		pairsMux.Unlock()
		lg.Info("mediaportd echoing",
			zap.Stringer("media", p.MediaAddr),
			zap.Bool("control", p.Control != nil),
		)
		wg.Add(1)
		go func(c net.PacketConn) {
			defer wg.Done()
			serveEcho(lg.Named("media"), c)
		}(p.Media)
		if p.Control != nil {
			wg.Add(1)
			go func(c net.PacketConn) {
				defer wg.Done()
				serveEcho(lg.Named("control"), c)
			}(p.Control)
		}
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		laddr := normalize(o.listen)
		lg := l.With(zap.String("addr", laddr), zap.String("network", "udp"))
		if err := ListenUDPAndEcho(lg, "udp", laddr, o.reusePort); err != nil {
			lg.Fatal("failed to listen", zap.Error(err))
		}
	}()
	wg.Wait()
}

func getRoot(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:              "mediaportd",
		Short:            "mediaportd allocates UDP media ports and echoes traffic on them",
		PersistentPreRun: func(cmd *cobra.Command, args []string) { initConfig(v) },
		Run:              func(cmd *cobra.Command, args []string) { runRoot(v) },
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/mediaportd.yml)")
	cmd.Flags().StringP("addr", "a", "0.0.0.0", "local address for media ports")
	cmd.Flags().StringP("listen", "l", "0.0.0.0:7878", "echo listen address")
	cmd.Flags().Int("port-min", 10000, "lowest media port")
	cmd.Flags().Int("port-max", 20000, "highest media port")
	cmd.Flags().String("pprof", "", "pprof address if specified")

	mustBind(v.BindPFlag("server.addr", cmd.Flags().Lookup("addr")))
	mustBind(v.BindPFlag("server.listen", cmd.Flags().Lookup("listen")))
	mustBind(v.BindPFlag("server.port.min", cmd.Flags().Lookup("port-min")))
	mustBind(v.BindPFlag("server.port.max", cmd.Flags().Lookup("port-max")))
	mustBind(v.BindPFlag("server.pprof", cmd.Flags().Lookup("pprof")))

	cmd.AddCommand(getCheckCmd(v))
	cmd.AddCommand(getRouteCmd())

	return cmd
}
