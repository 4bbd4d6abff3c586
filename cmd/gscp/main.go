package main

import (
	"flag"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/term"

	"github.com/drunlade/go-scp/scp"
)

var (
	configPath = flag.String("config", "", "TOML config file")
	host       = flag.String("host", "", "remote host (hostname or hostname:port)")
	port       = flag.Int("P", 0, "remote port")
	user       = flag.String("user", "", "SSH username")
	password   = flag.String("password", "", "SSH password (or use SSH_PASSWORD env var)")
	identity   = flag.String("i", "", "private key file")
	binary     = flag.String("bin", "", "remote scp binary path")
	useSFTP    = flag.Bool("sftp", false, "use the SFTP subsystem instead of the scp binary")
	logFile    = flag.String("log", "", "protocol log file (for debugging)")
	verbose    = flag.Bool("v", false, "verbose mode")
	quiet      = flag.Bool("q", false, "quiet mode")
	help       = flag.Bool("h", false, "show help")
	version    = flag.Bool("version", false, "show version")
)

const versionString = "gscp version 0.1.0"

func showUsage(exitCode int) {
	fmt.Fprintf(os.Stderr, `Usage: %s [options] put <local> <remote>
       %s [options] get <remote> <local>

Options:
  -config string    TOML config file (host, port, user, identity_file, ...)
  -host string      remote host (hostname or hostname:port)
  -P int            remote port (default 22)
  -user string      SSH username
  -password string  SSH password (or use SSH_PASSWORD env var)
  -i string         private key file
  -bin string       remote scp binary path (default %s)
  -sftp             use the SFTP subsystem instead of the scp binary
  -log string       protocol log file for debugging (optional)
  -v                verbose mode
  -q                quiet mode
  -h                show help

Example:
  %s -host example.com -user deploy put build.tar.gz /srv/release/build.tar.gz
`, os.Args[0], os.Args[0], scp.DefaultRemoteBinary, os.Args[0])
	os.Exit(exitCode)
}

func main() {
	flag.Parse()

	if *help {
		showUsage(0)
	}

	if *version {
		fmt.Println(versionString)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) != 3 {
		fmt.Fprintf(os.Stderr, "%s: expected put|get with two paths\n", os.Args[0])
		showUsage(1)
	}
	op, src, dst := args[0], args[1], args[2]

	cfg := defaultClientConfig()
	if *configPath != "" {
		var err error
		cfg, err = loadClientConfig(*configPath)
		if err != nil {
			fatal("%v", err)
		}
	}

	// Flags override the config file.
	if *host != "" {
		cfg.Host = *host
	}
	if *port > 0 {
		cfg.Port = *port
	}
	if *user != "" {
		cfg.User = *user
	}
	if *identity != "" {
		cfg.IdentityFile = *identity
	}
	if *binary != "" {
		cfg.RemoteBinary = *binary
	}
	if *useSFTP {
		cfg.UseSFTP = true
	}
	if *logFile != "" {
		cfg.LogFile = *logFile
	}

	if cfg.Host == "" {
		fatal("-host is required")
	}
	if cfg.User == "" {
		fatal("-user is required")
	}

	addr := cfg.Host
	if !strings.Contains(addr, ":") {
		addr = fmt.Sprintf("%s:%d", addr, cfg.Port)
	}

	auth, err := authMethods(cfg)
	if err != nil {
		fatal("%v", err)
	}

	opts := []scp.ClientOption{
		scp.WithSFTP(cfg.UseSFTP),
		scp.WithRemoteBinaryPath(cfg.RemoteBinary),
	}
	if cfg.LogFile != "" {
		logger, err := scp.NewFileLogger(cfg.LogFile)
		if err != nil {
			fatal("open log file: %v", err)
		}
		defer logger.Close()
		opts = append(opts, scp.WithClientLogger(logger))
	}

	client, err := scp.Dial(addr, &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         15 * time.Second,
	}, opts...)
	if err != nil {
		fatal("%v", err)
	}
	defer client.Close()

	var name string
	switch op {
	case "put":
		name = filepath.Base(src)
	case "get":
		name = path.Base(src)
	default:
		fmt.Fprintf(os.Stderr, "%s: unknown operation %q\n", os.Args[0], op)
		showUsage(1)
	}

	meter := newDisplayMeter(name)
	start := time.Now()

	switch op {
	case "put":
		err = client.Upload(src, dst, meter.Func())
	case "get":
		err = client.Download(src, dst, meter.Func())
	}

	if err != nil {
		fmt.Fprintln(os.Stderr)
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
		if msg := client.LastError(); msg != "" {
			fmt.Fprintf(os.Stderr, "%s: remote: %s\n", os.Args[0], msg)
		}
		os.Exit(1)
	}

	if !*quiet {
		transferred, _, _, _ := meter.Stats()
		if *verbose {
			fmt.Fprintf(os.Stderr, "\nCompleted: %s (%d bytes in %v)\n",
				name, transferred, time.Since(start).Round(time.Millisecond))
		} else {
			fmt.Fprintf(os.Stderr, "%s\n", name)
		}
	}
}

func newDisplayMeter(name string) *scp.Meter {
	return scp.NewMeter(name, 0, func(name string, transferred, total int64, rate float64) {
		if *quiet || !*verbose {
			return
		}
		if total > 0 {
			percent := float64(transferred) / float64(total) * 100
			fmt.Fprintf(os.Stderr, "\r%s: %.1f%% (%.0f bytes/s)", name, percent, rate)
		} else {
			fmt.Fprintf(os.Stderr, "\r%s: %d bytes (%.0f bytes/s)", name, transferred, rate)
		}
	})
}

func authMethods(cfg clientConfig) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if cfg.IdentityFile != "" {
		key, err := os.ReadFile(cfg.IdentityFile)
		if err != nil {
			return nil, fmt.Errorf("read identity file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse identity file: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	pass := *password
	if pass == "" {
		pass = os.Getenv("SSH_PASSWORD")
	}
	if pass == "" && len(methods) == 0 {
		fmt.Fprintf(os.Stderr, "%s@%s's password: ", cfg.User, cfg.Host)
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("read password: %w", err)
		}
		pass = string(raw)
	}
	if pass != "" {
		methods = append(methods, ssh.Password(pass))
	}

	if len(methods) == 0 {
		return nil, fmt.Errorf("no authentication method: use -i, -password, or SSH_PASSWORD")
	}
	return methods, nil
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", os.Args[0], fmt.Sprintf(format, args...))
	os.Exit(1)
}
