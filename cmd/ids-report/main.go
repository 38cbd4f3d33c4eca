// Command ids-report summarises a labelled NSL-KDD style CSV and optionally
// exports the filtered records as CSV and the summary as PDF.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/config"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/dataset"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/logging"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Margin(0, 1)

	normalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#22C55E"))
	attackStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		filterName = flag.String("filter", "all", "Records to export: all, normal or attack")
		csvOut     = flag.String("csv", "", "Write the filtered records to this CSV file")
		pdfOut     = flag.String("pdf", "", "Write the summary of the filtered records to this PDF file")
		buckets    = flag.Int("trend", 10, "Number of buckets in the attack trend (0 disables it)")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] dataset.csv\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return 2
	}

	log := logging.DatasetLogger()

	filter, err := dataset.ParseFilter(*filterName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ds, err := loadFile(flag.Arg(0))
	if err != nil {
		log.Error("failed to load dataset", logging.Err(err))
		return 1
	}

	fmt.Println(render(ds, *buckets))

	reportDir := config.DefaultPathConfig().ReportDir

	filtered := ds.Filter(filter)
	if *csvOut != "" {
		path := config.Resolve(reportDir, *csvOut)
		if err := writeFile(path, filtered.WriteCSV); err != nil {
			log.Error("failed to write csv report", logging.Err(err))
			return 1
		}
		log.Info("csv report written", "path", path, "filter", filter.String(), "records", len(filtered.Records))
	}
	if *pdfOut != "" {
		path := config.Resolve(reportDir, *pdfOut)
		err := writeFile(path, func(w io.Writer) error {
			return filtered.WritePDF(w, time.Now())
		})
		if err != nil {
			log.Error("failed to write pdf report", logging.Err(err))
			return 1
		}
		log.Info("pdf report written", "path", path, "filter", filter.String())
	}
	return 0
}

func loadFile(path string) (*dataset.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return dataset.Load(f)
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := config.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func render(ds *dataset.Dataset, buckets int) string {
	s := ds.Summary()

	title := titleStyle.Render(dataset.ReportTitle)

	totals := boxStyle.Render(fmt.Sprintf("Total Records:  %d\nNormal Traffic: %s\nAttacks:        %s\nAttack Share:   %.1f%%",
		s.Total,
		normalStyle.Render(fmt.Sprint(s.Normal)),
		attackStyle.Render(fmt.Sprint(s.Attack)),
		s.AttackPercent()))

	var protos strings.Builder
	protos.WriteString("Protocol   Normal   Attack")
	for _, p := range dataset.Protocols {
		pc, ok := s.ByProtocol[p]
		if !ok {
			continue
		}
		fmt.Fprintf(&protos, "\n%-8s %8d %8d", p, pc.Normal, pc.Attack)
	}
	protoBox := boxStyle.Render(protos.String())

	body := lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinHorizontal(lipgloss.Top, totals, protoBox))

	if points := ds.AttackTrend(buckets); len(points) > 0 {
		var trend strings.Builder
		trend.WriteString("Attack occurrence over records")
		for _, p := range points {
			bar := strings.Repeat("█", int(p.Ratio*20+0.5))
			fmt.Fprintf(&trend, "\n%6d-%-6d %-20s %5.1f%%", p.Start, p.End-1, bar, p.Ratio*100)
		}
		body = lipgloss.JoinVertical(lipgloss.Left, body, boxStyle.Render(trend.String()))
	}
	return body
}
