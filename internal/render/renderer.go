// Package render draws the weekly habit dashboard as a monochrome PNG
// sized for TRMNL e-ink displays. It consumes computed goal progress
// records as-is; no pacing math happens here.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/blackwell-systems/habitboard/internal/progress"
	"github.com/blackwell-systems/habitboard/internal/tracker"
)

const (
	imageWidth  = 800
	imageHeight = 480

	xMargin      = 20
	headerHeight = 62
	bottomMargin = 20
	barHeight    = 20
	dividerY     = 52

	// Recent encodes kept in memory so device polls between refreshes
	// never hit the disk.
	cacheSize = 8
)

var (
	black = color.Gray{Y: 0}
	white = color.Gray{Y: 255}
	gray  = color.Gray{Y: 0xd0}
)

// Renderer draws dashboards and remembers recently encoded images.
type Renderer struct {
	imagesDir string
	cache     *lru.Cache[string, []byte]
	log       *slog.Logger
}

// New creates a Renderer writing PNGs under imagesDir.
func New(imagesDir string, log *slog.Logger) (*Renderer, error) {
	if err := os.MkdirAll(imagesDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating images dir: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	cache, err := lru.New[string, []byte](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Renderer{imagesDir: imagesDir, cache: cache, log: log}, nil
}

// Render draws the snapshot and returns the image name (without
// extension). The encoded PNG is cached in memory and written to disk.
func (r *Renderer) Render(snap *tracker.Snapshot, now time.Time) (string, error) {
	img := r.draw(snap, now)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encoding dashboard: %w", err)
	}

	name := "dashboard-" + now.Format("20060102-150405")
	r.cache.Add(name, buf.Bytes())

	path := filepath.Join(r.imagesDir, name+".png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("writing dashboard: %w", err)
	}

	r.log.Debug("dashboard rendered", "name", name, "goals", len(snap.Goals))
	return name, nil
}

// Image returns the encoded PNG for a previously rendered name, falling
// back to disk for images rendered before a restart.
func (r *Renderer) Image(name string) ([]byte, bool) {
	if data, ok := r.cache.Get(name); ok {
		return data, true
	}
	if filepath.Base(name) != name {
		return nil, false
	}
	data, err := os.ReadFile(filepath.Join(r.imagesDir, name+".png"))
	if err != nil {
		return nil, false
	}
	r.cache.Add(name, data)
	return data, true
}

func (r *Renderer) draw(snap *tracker.Snapshot, now time.Time) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, imageWidth, imageHeight))
	draw.Draw(img, img.Bounds(), &image.Uniform{white}, image.Point{}, draw.Src)

	// Fraction of the week elapsed, including the partial current day.
	sinceStart := now.Sub(snap.Window.Start)
	weekFraction := sinceStart.Hours() / (7 * 24)
	if weekFraction < 0 {
		weekFraction = 0
	}
	if weekFraction > 1 {
		weekFraction = 1
	}

	r.drawWeekendBand(img, snap.Window)
	r.drawHeader(img, snap, now)

	barYs := r.drawGoals(img, snap.Goals)
	r.drawTimeIndicator(img, weekFraction)
	if len(barYs) > 0 {
		r.drawDayTicks(img, barYs[len(barYs)-1]+barHeight)
	}

	return img
}

// drawWeekendBand shades the weekend portion of the week behind the bars.
func (r *Renderer) drawWeekendBand(img *image.Gray, window progress.Window) {
	barWidth := imageWidth - 2*xMargin

	// Saturday and Sunday columns, wherever they fall in the configured
	// week.
	for day := 0; day < 7; day++ {
		weekday := window.Start.AddDate(0, 0, day).Weekday()
		if weekday != time.Saturday && weekday != time.Sunday {
			continue
		}
		x0 := xMargin + day*barWidth/7
		x1 := xMargin + (day+1)*barWidth/7
		fillRect(img, x0, dividerY, x1, imageHeight, gray)
	}
}

func (r *Renderer) drawHeader(img *image.Gray, snap *tracker.Snapshot, now time.Time) {
	window := snap.Window
	rangeText := fmt.Sprintf("%s - %s",
		window.Start.Format("Jan 02"),
		window.End.AddDate(0, 0, -1).Format("Jan 02, 2006"))
	drawText(img, xMargin, 22, rangeText)

	dayText := fmt.Sprintf("Day %d of 7 (%s)", window.DayOfWeek+1, now.Format("Mon"))
	drawText(img, xMargin, 42, dayText)

	updated := "Updated: " + now.Format("15:04")
	drawText(img, imageWidth-xMargin-textWidth(updated), 42, updated)

	fillRect(img, xMargin, dividerY, imageWidth-xMargin, dividerY+2, black)
}

// drawGoals lays the goal rows out evenly and returns each bar's top y.
func (r *Renderer) drawGoals(img *image.Gray, goals []tracker.GoalProgress) []int {
	if len(goals) == 0 {
		drawText(img, xMargin, imageHeight/2, "No goals configured on the hub")
		return nil
	}

	available := imageHeight - headerHeight - bottomMargin
	spacing := available / len(goals)

	barYs := make([]int, 0, len(goals))
	for i, g := range goals {
		y := headerHeight + i*spacing
		barYs = append(barYs, r.drawGoalRow(img, g, y))
	}
	return barYs
}

func (r *Renderer) drawGoalRow(img *image.Gray, g tracker.GoalProgress, y int) int {
	name := g.FriendlyName
	if g.Emoji != "" {
		name = g.Emoji + " " + name
	}
	drawText(img, xMargin, y+12, name)

	counts := fmt.Sprintf("%d/%d %s", g.CurrentCount, g.WeeklyTarget, statusMark(g.Status))
	drawText(img, imageWidth-xMargin-textWidth(counts), y+12, counts)

	barY := y + 22
	r.drawProgressBar(img, xMargin, barY, imageWidth-2*xMargin, g.CurrentCount, g.WeeklyTarget)
	return barY
}

func statusMark(s progress.Status) string {
	switch s {
	case progress.StatusAhead:
		return "+"
	case progress.StatusBehind:
		return "!"
	default:
		return ""
	}
}

// drawProgressBar draws a segmented bar: one segment per expected
// completion, filled left to right.
func (r *Renderer) drawProgressBar(img *image.Gray, x, y, width, current, target int) {
	if target <= 0 {
		return
	}

	fillFraction := float64(current) / float64(target)
	if fillFraction > 1 {
		fillFraction = 1
	}
	filled := int(fillFraction * float64(width))

	if filled > 0 {
		fillRect(img, x, y, x+filled, y+barHeight, black)
		// White dividers on the filled portion keep increments legible.
		for i := 1; i < target; i++ {
			segX := x + i*width/target
			if segX < x+filled {
				fillRect(img, segX, y, segX+2, y+barHeight, white)
			}
		}
	}

	strokeRect(img, x, y, x+width, y+barHeight, black)

	for i := 1; i < target; i++ {
		segX := x + i*width/target
		if segX >= x+filled {
			fillRect(img, segX, y, segX+1, y+barHeight, black)
		}
	}
}

// drawTimeIndicator draws a dashed vertical line at the current position
// in the week, from the header divider to the bottom edge.
func (r *Renderer) drawTimeIndicator(img *image.Gray, weekFraction float64) {
	barWidth := imageWidth - 2*xMargin
	x := xMargin + int(weekFraction*float64(barWidth))
	if x < xMargin+2 {
		x = xMargin + 2
	}
	if x > imageWidth-xMargin-2 {
		x = imageWidth - xMargin - 2
	}

	const dash, gap = 4, 3
	for y := dividerY; y < imageHeight; y += dash + gap {
		end := y + dash
		if end > imageHeight {
			end = imageHeight
		}
		fillRect(img, x, y, x+2, end, black)
	}
}

// drawDayTicks marks the seven day boundaries under the last bar.
func (r *Renderer) drawDayTicks(img *image.Gray, y int) {
	barWidth := imageWidth - 2*xMargin
	for day := 0; day <= 7; day++ {
		x := xMargin + day*barWidth/7
		height := 5
		if day == 0 || day == 6 || day == 7 {
			height = 7
		}
		fillRect(img, x, y+3, x+2, y+3+height, black)
	}
}

func fillRect(img *image.Gray, x0, y0, x1, y1 int, c color.Gray) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			img.SetGray(x, y, c)
		}
	}
}

func strokeRect(img *image.Gray, x0, y0, x1, y1 int, c color.Gray) {
	fillRect(img, x0, y0, x1, y0+1, c)
	fillRect(img, x0, y1-1, x1, y1, c)
	fillRect(img, x0, y0, x0+1, y1, c)
	fillRect(img, x1-1, y0, x1, y1, c)
}

func drawText(img *image.Gray, x, y int, s string) {
	d := font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{black},
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func textWidth(s string) int {
	d := font.Drawer{Face: basicfont.Face7x13}
	return d.MeasureString(s).Ceil()
}
