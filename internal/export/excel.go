// Package export writes the video catalog to an Excel workbook.
package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"video_ingestor/internal/domain"
)

const SheetName = "Videos"

type VideoLister interface {
	ListWithCategory(ctx context.Context) ([]domain.Video, error)
}

type column struct {
	header string
	width  float64
	value  func(v *domain.Video) any
}

var columns = []column{
	{"ID", 10, func(v *domain.Video) any { return v.ID }},
	{"Video ID", 25, func(v *domain.Video) any { return v.VideoID }},
	{"Title", 30, func(v *domain.Video) any { return v.Title }},
	{"Published At", 22, func(v *domain.Video) any { return formatTime(v.PublishedAt) }},
	{"Channel ID", 30, func(v *domain.Video) any { return v.ChannelID }},
	{"Channel Title", 25, func(v *domain.Video) any { return v.ChannelTitle }},
	{"Trending Date", 22, func(v *domain.Video) any { return formatTime(v.IngestedAt) }},
	{"Tags", 30, func(v *domain.Video) any { return v.Tags }},
	{"View Count", 15, func(v *domain.Video) any { return v.ViewCount }},
	{"Likes", 10, func(v *domain.Video) any { return v.Likes }},
	{"Dislikes", 10, func(v *domain.Video) any { return v.Dislikes }},
	{"Comment Count", 15, func(v *domain.Video) any { return v.CommentCount }},
	{"Thumbnail Link", 40, func(v *domain.Video) any { return v.ThumbnailLink }},
	{"Comments Disabled", 20, func(v *domain.Video) any { return v.CommentsDisabled }},
	{"Ratings Disabled", 20, func(v *domain.Video) any { return v.RatingsDisabled }},
	{"Description", 50, func(v *domain.Video) any { return v.Description }},
	{"Duration Seconds", 18, func(v *domain.Video) any { return v.DurationSeconds }},
	{"Country Code", 12, func(v *domain.Video) any { return v.CountryCode }},
	{"Page Token", 20, func(v *domain.Video) any { return v.PageToken }},
	{"Category ID", 15, func(v *domain.Video) any { return v.CategoryID }},
	{"Category Name", 25, func(v *domain.Video) any { return v.CategoryTitle }},
}

type Exporter struct {
	videos VideoLister
	logger *slog.Logger
}

func NewExporter(videos VideoLister, logger *slog.Logger) *Exporter {
	return &Exporter{videos: videos, logger: logger}
}

// WriteFile exports the catalog to path, creating parent directories. The
// workbook is written to a temporary file first, so path is only replaced
// by a complete export.
func (e *Exporter) WriteFile(ctx context.Context, path string) (int, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create export directory: %w", err)
	}

	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create export file: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	n, err := e.Write(ctx, f)
	if err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close export file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, fmt.Errorf("move export file: %w", err)
	}

	e.logger.Info("catalog exported", "path", path, "videos", n)
	return n, nil
}

// Write streams the workbook to w and returns the number of video rows.
func (e *Exporter) Write(ctx context.Context, w io.Writer) (int, error) {
	videos, err := e.videos.ListWithCategory(ctx)
	if err != nil {
		return 0, fmt.Errorf("list videos: %w", err)
	}
	if len(videos) == 0 {
		e.logger.Warn("catalog is empty, exporting headers only")
	}

	book, err := build(videos)
	if err != nil {
		return 0, err
	}
	defer book.Close()

	if _, err := book.WriteTo(w); err != nil {
		return 0, fmt.Errorf("write workbook: %w", err)
	}
	return len(videos), nil
}

func build(videos []domain.Video) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c.header
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetColWidth(SheetName, name, name, c.width); err != nil {
			f.Close()
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(columns), 1)
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetCellStyle(SheetName, "A1", last, bold); err != nil {
		f.Close()
		return nil, fmt.Errorf("style header: %w", err)
	}

	for i := range videos {
		row := make([]any, len(columns))
		for j, c := range columns {
			row[j] = c.value(&videos[i])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	return f, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
