package stats

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"

	"stipple/internal/fitness"
	"stipple/internal/model"
	"stipple/internal/preview"
)

const (
	configFile  = "config.json"
	fitnessFile = "fitness.csv"
	bestFile    = "best.png"
	plotFile    = "fitness.png"

	dirStampLayout = "%Y%m%d-%H%M%S"
)

// RunArtifacts is everything written to disk for one finished run.
type RunArtifacts struct {
	RunID            string
	CreatedAt        time.Time
	Source           string
	Config           model.RunConfig
	Generations      int
	FinalBestError   float64
	StopReason       string
	BestByGeneration []float64
	MeanByGeneration []float64
	Best             image.Image
}

type runConfigFile struct {
	RunID          string          `json:"run_id"`
	CreatedAtUTC   string          `json:"created_at_utc"`
	Source         string          `json:"source"`
	Generations    int             `json:"generations"`
	FinalBestError float64         `json:"final_best_error"`
	FinalScore     float64         `json:"final_score"`
	StopReason     string          `json:"stop_reason"`
	Config         model.RunConfig `json:"config"`
}

// RunDirName stamps the run directory with its creation time so listings
// sort chronologically.
func RunDirName(createdAt time.Time, runID string) string {
	return strftime.Format(dirStampLayout, createdAt.UTC()) + "-" + runID
}

// WriteRunArtifacts writes config.json, fitness.csv, best.png and
// fitness.png under baseDir and returns the run directory.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if strings.TrimSpace(artifacts.RunID) == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, RunDirName(artifacts.CreatedAt, artifacts.RunID))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	cfg := runConfigFile{
		RunID:          artifacts.RunID,
		CreatedAtUTC:   artifacts.CreatedAt.UTC().Format(time.RFC3339),
		Source:         artifacts.Source,
		Generations:    artifacts.Generations,
		FinalBestError: artifacts.FinalBestError,
		FinalScore:     fitness.Similarity(artifacts.FinalBestError),
		StopReason:     artifacts.StopReason,
		Config:         artifacts.Config,
	}
	if err := writeJSON(filepath.Join(runDir, configFile), cfg); err != nil {
		return "", err
	}
	if err := WriteFitnessSeries(filepath.Join(runDir, fitnessFile), artifacts.BestByGeneration, artifacts.MeanByGeneration); err != nil {
		return "", err
	}
	if artifacts.Best != nil {
		if err := preview.WritePNG(filepath.Join(runDir, bestFile), artifacts.Best); err != nil {
			return "", err
		}
	}
	if len(artifacts.BestByGeneration) > 0 {
		title := fmt.Sprintf("run %s", artifacts.RunID)
		if err := WriteFitnessPlot(filepath.Join(runDir, plotFile), title, artifacts.BestByGeneration, artifacts.MeanByGeneration); err != nil {
			return "", fmt.Errorf("fitness plot: %w", err)
		}
	}
	return runDir, nil
}

// WriteFitnessSeries writes one CSV row per generation. The mean column is
// left empty for generations without a recorded mean.
func WriteFitnessSeries(path string, best, mean []float64) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"generation", "best_error", "score", "mean_error"}); err != nil {
		return err
	}
	for i, value := range best {
		meanCol := ""
		if i < len(mean) {
			meanCol = strconv.FormatFloat(mean[i], 'f', -1, 64)
		}
		if err := writer.Write([]string{
			strconv.Itoa(i + 1),
			strconv.FormatFloat(value, 'f', -1, 64),
			strconv.FormatFloat(fitness.Similarity(value), 'f', -1, 64),
			meanCol,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadFitnessSeries reads the best_error column of a fitness CSV.
func ReadFitnessSeries(path string) ([]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []float64{}, nil
		}
		return nil, err
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("fitness series header must have at least 2 columns")
	}

	series := make([]float64, 0, 128)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		value, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, err
		}
		series = append(series, value)
	}
	return series, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
