package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/wbrown/janus-pathstore/pathstore"
	"github.com/wbrown/janus-pathstore/pathstore/codec"
	"github.com/wbrown/janus-pathstore/pathstore/storage"
)

// inspectorStore is what the inspector drives: timestamped reads,
// property listing and the record log. All three drivers provide it.
type inspectorStore interface {
	pathstore.TimestampedStore
	pathstore.PropertySource
	pathstore.RecordSource
}

func main() {
	var dbPath string
	var driver string
	var codecName string
	var keyStrategy string
	var interactive bool
	var help bool
	var verbose bool

	flag.StringVar(&dbPath, "db", "", "store path")
	flag.StringVar(&driver, "driver", "badger", "store driver: badger, sqlite or memory")
	flag.StringVar(&codecName, "codec", "json", "value codec: json or binary")
	flag.StringVar(&keyStrategy, "keys", "binary", "badger key encoding: binary or l85")
	flag.BoolVar(&interactive, "i", false, "interactive mode")
	flag.BoolVar(&help, "h", false, "show help")
	flag.BoolVar(&verbose, "verbose", false, "verbose mode (store engine logs)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] [store_path]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "An inspector for path-addressed model stores.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                          # Run demo against the default store\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -i mystore.db            # Interactive mode on a badger store\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -driver sqlite -i s.db   # Interactive mode on a sqlite store\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -driver memory -i        # Interactive mode, nothing persisted\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -keys l85                # Badger store with printable keys\n", os.Args[0])
	}
	flag.Parse()

	if help {
		flag.Usage()
		os.Exit(0)
	}

	// Check for positional argument
	if dbPath == "" && flag.NArg() > 0 {
		dbPath = flag.Arg(0)
	}
	if dbPath == "" {
		dbPath = "pathstore.db"
	}

	var c codec.Codec
	switch codecName {
	case "json":
		c = codec.JSON{}
	case "binary":
		c = codec.Binary{}
	default:
		log.Fatalf("Unknown codec: %s (use 'json' or 'binary')", codecName)
	}

	var strategy storage.KeyEncodingStrategy
	switch keyStrategy {
	case "binary":
		strategy = storage.BinaryStrategy
	case "l85":
		strategy = storage.L85Strategy
	default:
		log.Fatalf("Unknown key encoding: %s (use 'binary' or 'l85')", keyStrategy)
	}

	var engineLog *slog.Logger
	if verbose {
		engineLog = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	var base inspectorStore
	var closeStore func() error
	switch driver {
	case "badger":
		s, err := storage.NewBadgerStore(dbPath, c, storage.NewKeyEncoder(strategy), engineLog)
		if err != nil {
			log.Fatalf("Failed to open store: %v", err)
		}
		base, closeStore = s, s.Close
	case "sqlite":
		s, err := storage.OpenSQLStore(dbPath, c)
		if err != nil {
			log.Fatalf("Failed to open store: %v", err)
		}
		base, closeStore = s, s.Close
	case "memory":
		base, closeStore = pathstore.NewHistoryStore(c), func() error { return nil }
	default:
		log.Fatalf("Unknown driver: %s (use 'badger', 'sqlite' or 'memory')", driver)
	}
	defer closeStore()

	in := newInspector(base)

	if interactive {
		in.runInteractive()
	} else if in.isEmpty() {
		fmt.Println("Store is empty, loading demo data...")
		in.runDemo()
	} else {
		fmt.Println("Store contains data. Use -i for interactive mode.")
	}
}

// inspector drives a store from the terminal. Writes go through a
// notifying wrapper so watch subscriptions see them.
type inspector struct {
	base   inspectorStore
	writes pathstore.Store
	hub    *pathstore.Hub
	watch  *pathstore.Subscription
}

func newInspector(base inspectorStore) *inspector {
	hub := pathstore.NewHub()
	return &inspector{
		base:   base,
		writes: pathstore.NewNotifyingStore(base, hub),
		hub:    hub,
	}
}

func (in *inspector) isEmpty() bool {
	records, err := in.base.RecordsAfter(0)
	if err != nil {
		return true
	}
	return len(records) == 0
}

func (in *inspector) runInteractive() {
	fmt.Println("=== Janus Pathstore Interactive Mode ===")
	fmt.Println("Commands:")
	fmt.Println("  create <model> <instance> [@date]              - Mark an instance created")
	fmt.Println("  delete <model> <instance> [@date]              - Mark an instance deleted")
	fmt.Println("  set <model> <instance> <prop> <value> [@date]  - Write a value")
	fmt.Println("  get <model> <instance> <prop> [@date]          - Read a value")
	fmt.Println("  history <model> <instance> <prop>              - Every dated value at a path")
	fmt.Println("  props <model> <instance>                       - Latest value per property")
	fmt.Println("  instances <model> [@date]                      - Instance statuses")
	fmt.Println("  models                                         - Models found in the log")
	fmt.Println("  watch <model> / unwatch                        - Follow writes to a model")
	fmt.Println("  keys <model> <instance> <prop>                 - Storage keys for a path")
	fmt.Println("  help / exit")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}
		in.dispatch(line)
	}
}

func (in *inspector) dispatch(line string) {
	parts := strings.Fields(line)
	cmd, args := parts[0], parts[1:]

	var err error
	switch cmd {
	case "help":
		fmt.Println("Enter a command; numbers address models, instances and properties.")
		fmt.Println("Dates are float seconds since the epoch, given as a trailing @date.")
	case "create":
		err = in.create(args)
	case "delete":
		err = in.remove(args)
	case "set":
		err = in.set(args)
	case "get":
		err = in.get(args)
	case "history":
		err = in.history(args)
	case "props":
		err = in.props(args)
	case "instances":
		err = in.instances(args)
	case "models":
		err = in.models(args)
	case "watch":
		err = in.watchModel(args)
	case "unwatch":
		err = in.unwatch()
	case "keys":
		err = in.keys(args)
	default:
		fmt.Println("Unknown command. Use help for help.")
	}
	if err != nil {
		fmt.Printf("%s %v\n", color.RedString("✗"), err)
	}
}

func (in *inspector) create(args []string) error {
	args, at, err := splitDate(args)
	if err != nil {
		return err
	}
	if len(args) != 2 {
		return fmt.Errorf("expected: create <model> <instance> [@date]")
	}
	model, instance, err := parseInstance(args)
	if err != nil {
		return err
	}
	if err := pathstore.CreateInstanceAt(in.writes, model, instance, at); err != nil {
		return err
	}
	fmt.Printf("%s instance %d/%d created\n", color.GreenString("✓"), model, instance)
	return nil
}

func (in *inspector) remove(args []string) error {
	args, at, err := splitDate(args)
	if err != nil {
		return err
	}
	if len(args) != 2 {
		return fmt.Errorf("expected: delete <model> <instance> [@date]")
	}
	model, instance, err := parseInstance(args)
	if err != nil {
		return err
	}
	if err := pathstore.DeleteInstanceAt(in.writes, model, instance, at); err != nil {
		return err
	}
	fmt.Printf("%s instance %d/%d deleted\n", color.GreenString("✓"), model, instance)
	return nil
}

func (in *inspector) set(args []string) error {
	args, at, err := splitDate(args)
	if err != nil {
		return err
	}
	if len(args) < 4 {
		return fmt.Errorf("expected: set <model> <instance> <property> <value> [@date]")
	}
	path, err := parsePath(args[:3])
	if err != nil {
		return err
	}
	value := parseValue(strings.Join(args[3:], " "))
	if err := pathstore.SetAt(in.writes, path, value, at); err != nil {
		return err
	}
	fmt.Printf("%s %s set\n", color.GreenString("✓"), path)
	return nil
}

func (in *inspector) get(args []string) error {
	args, at, err := splitDate(args)
	if err != nil {
		return err
	}
	if len(args) != 3 {
		return fmt.Errorf("expected: get <model> <instance> <property> [@date]")
	}
	path, err := parsePath(args)
	if err != nil {
		return err
	}
	sample, err := in.base.SampleAt(path, at)
	if err != nil {
		return err
	}
	if sample == nil {
		fmt.Println("no value")
		return nil
	}
	fmt.Printf("%s  %s\n", in.renderValue(sample.Data), color.YellowString("@%s", sample.Date))
	return nil
}

func (in *inspector) history(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("expected: history <model> <instance> <property>")
	}
	path, err := parsePath(args)
	if err != nil {
		return err
	}
	records, err := in.base.RecordsAfter(0)
	if err != nil {
		return err
	}
	var rows [][]string
	for _, r := range records {
		if r.Path != path {
			continue
		}
		rows = append(rows, []string{r.Sample.Date.String(), in.renderValue(r.Sample.Data)})
	}
	renderTable([]string{"date", "value"}, rows)
	return nil
}

func (in *inspector) props(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("expected: props <model> <instance>")
	}
	model, instance, err := parseInstance(args)
	if err != nil {
		return err
	}
	var rows [][]string
	err = in.base.EnumerateProperties(model, instance, func(p pathstore.PropertyKey, s pathstore.Sample) bool {
		rows = append(rows, []string{
			strconv.FormatInt(int64(p), 10),
			in.renderValue(s.Data),
			s.Date.String(),
		})
		return true
	})
	if err != nil {
		return err
	}
	renderTable([]string{"property", "value", "date"}, rows)
	return nil
}

func (in *inspector) instances(args []string) error {
	args, at, err := splitDate(args)
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("expected: instances <model> [@date]")
	}
	m, err := parseKey(args[0])
	if err != nil {
		return err
	}
	var rows [][]string
	err = in.base.EnumerateStatusAt(pathstore.ModelKey(m), at, func(instance pathstore.InstanceKey, s pathstore.Sample) bool {
		label := "?"
		if status, ok := pathstore.DecodeStatus(in.base.Codec(), s.Data); ok {
			label = renderStatus(status)
		}
		rows = append(rows, []string{
			strconv.FormatInt(int64(instance), 10),
			label,
			s.Date.String(),
		})
		return true
	})
	if err != nil {
		return err
	}
	renderTable([]string{"instance", "status", "since"}, rows)
	return nil
}

func (in *inspector) models(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("expected: models")
	}
	records, err := in.base.RecordsAfter(0)
	if err != nil {
		return err
	}
	type stat struct {
		instances map[pathstore.InstanceKey]struct{}
		samples   int
		last      pathstore.Timestamp
	}
	stats := map[pathstore.ModelKey]*stat{}
	for _, r := range records {
		st := stats[r.Path.Model]
		if st == nil {
			st = &stat{instances: map[pathstore.InstanceKey]struct{}{}}
			stats[r.Path.Model] = st
		}
		st.instances[r.Path.Instance] = struct{}{}
		st.samples++
		if r.Sample.Date > st.last {
			st.last = r.Sample.Date
		}
	}
	models := make([]pathstore.ModelKey, 0, len(stats))
	for m := range stats {
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool { return models[i] < models[j] })
	var rows [][]string
	for _, m := range models {
		st := stats[m]
		rows = append(rows, []string{
			strconv.FormatInt(int64(m), 10),
			strconv.Itoa(len(st.instances)),
			strconv.Itoa(st.samples),
			st.last.String(),
		})
	}
	renderTable([]string{"model", "instances", "samples", "last write"}, rows)
	return nil
}

func (in *inspector) watchModel(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("expected: watch <model>")
	}
	m, err := parseKey(args[0])
	if err != nil {
		return err
	}
	if in.watch != nil {
		in.watch.Cancel()
	}
	in.watch = in.hub.SubscribeModel(pathstore.ModelKey(m), func(path pathstore.Path, s pathstore.Sample) {
		fmt.Printf("%s %s = %s %s\n",
			color.CyanString("watch:"), path, in.renderValue(s.Data), color.YellowString("@%s", s.Date))
	})
	fmt.Printf("watching model %d\n", m)
	return nil
}

func (in *inspector) unwatch() error {
	if in.watch == nil {
		fmt.Println("nothing watched")
		return nil
	}
	in.watch.Cancel()
	in.watch = nil
	fmt.Println("watch cancelled")
	return nil
}

func (in *inspector) keys(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("expected: keys <model> <instance> <property>")
	}
	path, err := parsePath(args)
	if err != nil {
		return err
	}
	binaryEnc := storage.NewKeyEncoder(storage.BinaryStrategy)
	l85Enc := storage.NewKeyEncoder(storage.L85Strategy)
	now := pathstore.Now()
	rows := [][]string{
		{
			"primary prefix",
			fmt.Sprintf("%x", storage.PathPrefix(binaryEnc, path)),
			string(storage.PathPrefix(l85Enc, path)),
		},
		{
			"status prefix",
			fmt.Sprintf("%x", storage.StatusPrefix(binaryEnc, path.Model, path.Instance)),
			string(storage.StatusPrefix(l85Enc, path.Model, path.Instance)),
		},
		{
			"sample @now",
			fmt.Sprintf("%x", storage.SampleKey(binaryEnc, path, now, 0)),
			string(storage.SampleKey(l85Enc, path, now, 0)),
		},
	}
	renderTable([]string{"key", "binary", "l85"}, rows)
	return nil
}

// renderValue decodes sample bytes for display, falling back to hex
func (in *inspector) renderValue(data []byte) string {
	var v interface{}
	if err := in.base.Codec().Decode(data, &v); err != nil {
		return fmt.Sprintf("0x%x", data)
	}
	switch val := v.(type) {
	case string:
		return fmt.Sprintf("%q", val)
	case []byte:
		return fmt.Sprintf("0x%x", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func renderStatus(s pathstore.InstanceStatus) string {
	switch s {
	case pathstore.StatusCreated:
		return color.GreenString(s.String())
	case pathstore.StatusDeleted:
		return color.RedString(s.String())
	default:
		return s.String()
	}
}

// renderTable prints rows as a markdown table
func renderTable(headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Println("_No rows_")
		return
	}
	alignment := make([]tw.Align, len(headers))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header(headers)
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()
	fmt.Printf("_%d rows_\n", len(rows))
}

// splitDate peels a trailing @date argument off
func splitDate(args []string) ([]string, pathstore.Timestamp, error) {
	if len(args) == 0 || !strings.HasPrefix(args[len(args)-1], "@") {
		return args, 0, nil
	}
	raw := strings.TrimPrefix(args[len(args)-1], "@")
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("bad date %q: expected float seconds since the epoch", raw)
	}
	return args[:len(args)-1], pathstore.Timestamp(seconds), nil
}

func parseKey(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad key %q: expected an integer", s)
	}
	return n, nil
}

func parseInstance(args []string) (pathstore.ModelKey, pathstore.InstanceKey, error) {
	m, err := parseKey(args[0])
	if err != nil {
		return 0, 0, err
	}
	i, err := parseKey(args[1])
	if err != nil {
		return 0, 0, err
	}
	return pathstore.ModelKey(m), pathstore.InstanceKey(i), nil
}

func parsePath(args []string) (pathstore.Path, error) {
	model, instance, err := parseInstance(args)
	if err != nil {
		return pathstore.Path{}, err
	}
	p, err := parseKey(args[2])
	if err != nil {
		return pathstore.Path{}, err
	}
	if pathstore.PropertyKey(p) == pathstore.InstanceIDProperty {
		return pathstore.Path{}, fmt.Errorf("property 0 is the instance status; use create/delete/instances")
	}
	return pathstore.NewPath(model, instance, pathstore.PropertyKey(p)), nil
}

// parseValue guesses a literal's type: integer, float, bool, quoted
// string, bare string
func parseValue(s string) interface{} {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func (in *inspector) runDemo() {
	fmt.Println("=== Janus Pathstore Demo ===")
	fmt.Println("\nPopulating model 1 with three instances...")

	const model pathstore.ModelKey = 1
	base := pathstore.Now()

	must := func(err error) {
		if err != nil {
			log.Fatalf("Demo write failed: %v", err)
		}
	}

	must(pathstore.CreateInstanceAt(in.writes, model, 1, base.Add(-90*time.Minute)))
	must(pathstore.SetAt(in.writes, pathstore.NewPath(model, 1, 1), "boiler", base.Add(-85*time.Minute)))
	must(pathstore.SetAt(in.writes, pathstore.NewPath(model, 1, 2), 21.5, base.Add(-80*time.Minute)))
	must(pathstore.SetAt(in.writes, pathstore.NewPath(model, 1, 2), 23.0, base.Add(-40*time.Minute)))
	must(pathstore.CreateInstanceAt(in.writes, model, 2, base.Add(-70*time.Minute)))
	must(pathstore.SetAt(in.writes, pathstore.NewPath(model, 2, 1), "intake", base.Add(-65*time.Minute)))
	must(pathstore.SetAt(in.writes, pathstore.NewPath(model, 2, 2), 18.25, base.Add(-60*time.Minute)))
	must(pathstore.CreateInstanceAt(in.writes, model, 3, base.Add(-50*time.Minute)))
	must(pathstore.DeleteInstanceAt(in.writes, model, 3, base.Add(-10*time.Minute)))

	fmt.Println("\nInstances now:")
	in.dispatch("instances 1")

	fmt.Println("\nInstances an hour ago:")
	in.dispatch(fmt.Sprintf("instances 1 @%f", float64(base.Add(-time.Hour))))

	fmt.Println("\nProperties of instance 1:")
	in.dispatch("props 1 1")

	fmt.Println("\nHistory of the reading at (1 1 2):")
	in.dispatch("history 1 1 2")

	fmt.Println("\nStorage keys for (1 1 2):")
	in.dispatch("keys 1 1 2")

	fmt.Println("\nUse -i for interactive mode.")
}
