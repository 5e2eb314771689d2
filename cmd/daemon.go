package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/praxis/internal/cli"
	"github.com/theirongolddev/praxis/internal/config"
	"github.com/theirongolddev/praxis/internal/daemon"
	"github.com/theirongolddev/praxis/internal/pipeline"
)

var (
	flagDaemonAddr         string
	flagDaemonRefresh      string
	flagDaemonDetach       bool
	flagDaemonPIDFile      string
	flagDaemonLogFile      string
	flagDaemonEventsBuffer int
	flagDaemonChild        bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Serve practice metrics over HTTP/SSE and refresh them on a schedule",
	RunE:  runDaemon,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon process and API status",
	RunE:  runDaemonStatus,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	RunE:  runDaemonStop,
}

func init() {
	dataDir := filepath.Dir(config.DefaultDBPath())

	pf := daemonCmd.PersistentFlags()
	pf.StringVar(&flagDaemonAddr, "addr", "", "HTTP listen address (default from config)")
	pf.StringVar(&flagDaemonRefresh, "refresh", "", "Refresh schedule as a cron spec (default from config)")
	pf.StringVar(&flagDaemonPIDFile, "pid-file", filepath.Join(dataDir, "praxisd.pid"), "PID file path")
	pf.StringVar(&flagDaemonLogFile, "log-file", filepath.Join(dataDir, "praxisd.log"), "Log file path for detached mode")
	pf.IntVar(&flagDaemonEventsBuffer, "events-buffer", 0, "Max in-memory events retained (default from config)")

	daemonCmd.Flags().BoolVar(&flagDaemonDetach, "detach", false, "Run daemon as a background process")
	daemonCmd.Flags().BoolVar(&flagDaemonChild, "child", false, "Internal: mark detached child process")
	_ = daemonCmd.Flags().MarkHidden("child")

	daemonCmd.AddCommand(daemonStatusCmd, daemonStopCmd)
	rootCmd.AddCommand(daemonCmd)
}

// daemonFiles locates the pid file and the runtime state written next to it.
type daemonFiles struct {
	pid string
}

// daemonState is written beside the pid file so `daemon status` can find the API.
type daemonState struct {
	PID       int       `json:"pid"`
	Addr      string    `json:"addr"`
	StartedAt time.Time `json:"started_at"`
	DBPath    string    `json:"db_path"`
}

func (f daemonFiles) state() string { return f.pid + ".json" }

func (f daemonFiles) readPID() (int, error) {
	data, err := os.ReadFile(f.pid)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid in %s", f.pid)
	}
	return pid, nil
}

func (f daemonFiles) write(st daemonState) error {
	if err := os.MkdirAll(filepath.Dir(f.pid), 0o750); err != nil {
		return fmt.Errorf("creating daemon directory: %w", err)
	}
	if err := os.WriteFile(f.pid, []byte(strconv.Itoa(st.PID)+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing pid file: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.state(), append(data, '\n'), 0o600)
}

func (f daemonFiles) readState() (daemonState, error) {
	var st daemonState
	data, err := os.ReadFile(f.state())
	if err != nil {
		return st, err
	}
	err = json.Unmarshal(data, &st)
	return st, err
}

func (f daemonFiles) remove() {
	_ = os.Remove(f.pid)
	_ = os.Remove(f.state())
}

// ensureStopped fails when a live daemon owns the pid file and clears stale files.
func (f daemonFiles) ensureStopped() error {
	pid, err := f.readPID()
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		return err
	case processAlive(pid):
		return fmt.Errorf("daemon already running (pid %d)", pid)
	}
	f.remove()
	return nil
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

func runDaemon(_ *cobra.Command, _ []string) error {
	if flagDaemonDetach && flagDaemonChild {
		return errors.New("invalid daemon launch mode")
	}
	files := daemonFiles{pid: flagDaemonPIDFile}
	if flagDaemonDetach {
		return startDaemonDetached(files)
	}
	return runDaemonForeground(files)
}

// startDaemonDetached re-executes the current command line as a child with
// output appended to the log file.
func startDaemonDetached(files daemonFiles) error {
	if err := files.ensureStopped(); err != nil {
		return err
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving executable: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(flagDaemonLogFile), 0o750); err != nil {
		return fmt.Errorf("creating daemon log directory: %w", err)
	}
	logf, err := os.OpenFile(flagDaemonLogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("opening daemon log file: %w", err)
	}
	defer func() { _ = logf.Close() }()

	child := exec.Command(exe, append(filterDetachArg(os.Args[1:]), "--child")...) //nolint:gosec // re-exec of the current invocation
	child.Stdout = logf
	child.Stderr = logf
	child.Env = os.Environ()
	if err := child.Start(); err != nil {
		return fmt.Errorf("starting detached daemon: %w", err)
	}

	fmt.Print(cli.RenderKV([][2]string{
		{"Started", fmt.Sprintf("pid %d", child.Process.Pid)},
		{"PID file", files.pid},
		{"API", "http://" + daemonAddr() + "/v1/status"},
		{"Log", flagDaemonLogFile},
	}))
	return nil
}

func runDaemonForeground(files daemonFiles) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dcfg, err := daemonConfig(cfg)
	if err != nil {
		return err
	}
	if err := files.ensureStopped(); err != nil {
		return err
	}

	if err := files.write(daemonState{
		PID:       os.Getpid(),
		Addr:      dcfg.Addr,
		StartedAt: time.Now(),
		DBPath:    cfg.DBPath(),
	}); err != nil {
		return err
	}
	defer files.remove()

	log := newLogger(cfg)
	dcfg.Logger = log
	db, eng, err := openEngine(cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Print(cli.RenderKV([][2]string{
		{"Listening", "http://" + dcfg.Addr},
		{"Refresh", dcfg.Refresh},
		{"Database", cfg.DBPath()},
		{"Stop with", "praxis daemon stop --pid-file " + files.pid},
	}))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := daemon.New(dcfg, eng).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// daemonConfig merges daemon flags over the [daemon] and [forecast] config sections.
func daemonConfig(cfg config.Config) (daemon.Config, error) {
	scope, err := pipeline.ParseScope(cfg.Daemon.Scope)
	if err != nil {
		return daemon.Config{}, fmt.Errorf("daemon.scope: %w", err)
	}
	cmp, err := pipeline.ParseComparison(cfg.Daemon.Compare)
	if err != nil {
		return daemon.Config{}, fmt.Errorf("daemon.compare: %w", err)
	}

	dcfg := daemon.Config{
		Addr:          cfg.Daemon.Addr,
		Refresh:       cfg.Daemon.Refresh,
		EventsBuffer:  cfg.Daemon.EventsBuffer,
		Scope:         scope,
		Compare:       cmp,
		HistoryMonths: cfg.Forecast.HistoryMonths,
		MonthsAhead:   cfg.Forecast.MonthsAhead,
	}
	if flagDaemonAddr != "" {
		dcfg.Addr = flagDaemonAddr
	}
	if flagDaemonRefresh != "" {
		dcfg.Refresh = flagDaemonRefresh
	}
	if flagDaemonEventsBuffer > 0 {
		dcfg.EventsBuffer = flagDaemonEventsBuffer
	}
	return dcfg, nil
}

// daemonAddr is the --addr flag or the configured address.
func daemonAddr() string {
	if flagDaemonAddr != "" {
		return flagDaemonAddr
	}
	if cfg, err := config.Load(); err == nil {
		return cfg.Daemon.Addr
	}
	return config.DefaultConfig().Daemon.Addr
}

func runDaemonStatus(_ *cobra.Command, _ []string) error {
	files := daemonFiles{pid: flagDaemonPIDFile}
	pid, err := files.readPID()
	if err != nil {
		fmt.Println("  Daemon: not running (pid file not found)")
		return nil
	}
	if !processAlive(pid) {
		fmt.Printf("  Daemon: stale pid file (pid %d not alive)\n", pid)
		return nil
	}

	addr := daemonAddr()
	if st, err := files.readState(); err == nil && st.Addr != "" {
		addr = st.Addr
	}
	pairs := [][2]string{
		{"Daemon PID", strconv.Itoa(pid)},
		{"Address", "http://" + addr},
	}

	st, err := fetchDaemonStatus(addr)
	if err != nil {
		pairs = append(pairs, [2]string{"API status", err.Error()})
		fmt.Print(cli.RenderKV(pairs))
		return nil
	}

	last := "pending"
	if !st.LastRefreshAt.IsZero() {
		last = st.LastRefreshAt.Local().Format(time.RFC3339)
	}
	pairs = append(pairs,
		[2]string{"Last refresh", last},
		[2]string{"Refreshes", fmt.Sprintf("%d (%s)", st.RefreshCount, st.Refresh)},
		[2]string{"Period", fmt.Sprintf("%s vs %s, %s", st.Scope, st.Compare, st.Summary.Period)},
		[2]string{"Viability", fmt.Sprintf("%s (%s)", cli.FormatScore(st.Summary.Score), st.Summary.Status)},
		[2]string{"Net income", cli.FormatEuro(st.Summary.NetIncome)},
		[2]string{"Critical alerts", strconv.Itoa(st.Summary.CriticalAlerts)},
		[2]string{"Subscribers", strconv.Itoa(st.SubscriberCount)},
	)
	if st.LastError != "" {
		pairs = append(pairs, [2]string{"Last error", st.LastError})
	}
	fmt.Print(cli.RenderKV(pairs))
	return nil
}

func fetchDaemonStatus(addr string) (daemon.Status, error) {
	var st daemon.Status
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + addr + "/v1/status") //nolint:noctx // short status probe
	if err != nil {
		return st, fmt.Errorf("unreachable (%w)", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return st, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("malformed response (%w)", err)
	}
	return st, nil
}

func runDaemonStop(_ *cobra.Command, _ []string) error {
	files := daemonFiles{pid: flagDaemonPIDFile}
	pid, err := files.readPID()
	if err != nil {
		return errors.New("daemon is not running")
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding daemon process: %w", err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signalling daemon process: %w", err)
	}

	for deadline := time.Now().Add(8 * time.Second); time.Now().Before(deadline); {
		if !processAlive(pid) {
			files.remove()
			fmt.Printf("  Stopped daemon (pid %d)\n", pid)
			return nil
		}
		time.Sleep(150 * time.Millisecond)
	}
	return fmt.Errorf("daemon (pid %d) did not exit in time", pid)
}

func filterDetachArg(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a == "--detach" || strings.HasPrefix(a, "--detach=") {
			continue
		}
		out = append(out, a)
	}
	return out
}
