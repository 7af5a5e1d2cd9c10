// Package report renders shortlist results as a spreadsheet for reviewers.
package report

import (
	"fmt"
	"math"
	"strings"

	"recruitflow/internal/types"

	"github.com/xuri/excelize/v2"
)

// Sheet names of the shortlist workbook.
const (
	SheetShortlist = "Shortlist"
	SheetScores    = "All Scores"
	SheetSummary   = "Summary"
)

var scoreHeaders = []string{
	"Rank", "Candidate", "Email", "Overall", "Skills", "Experience", "Education",
	"Cultural Fit", "Recommendation", "Matched Skills", "Missing Skills",
}

// Input is the data rendered into the workbook.
type Input struct {
	RunID     string
	JobTitle  string
	Company   string
	Scores    []types.ScoredCandidate
	Shortlist types.Shortlist
}

// Workbook builds the shortlist workbook and returns it as XLSX bytes.
func Workbook(in Input) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetShortlist); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{SheetScores, SheetSummary} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	shortlistRows := make([][]any, 0, len(in.Shortlist.Entries))
	for _, e := range in.Shortlist.Entries {
		shortlistRows = append(shortlistRows, scoreRow(e.Rank, e.Candidate, e.Score))
	}
	if err := writeTable(f, SheetShortlist, scoreHeaders, shortlistRows, bold); err != nil {
		return nil, err
	}

	ranks := make(map[string]int, len(in.Shortlist.Entries))
	for _, e := range in.Shortlist.Entries {
		ranks[e.Candidate.ID] = e.Rank
	}
	scoreRows := make([][]any, 0, len(in.Scores))
	for _, sc := range in.Scores {
		scoreRows = append(scoreRows, scoreRow(ranks[sc.Candidate.ID], sc.Candidate, sc.Score))
	}
	if err := writeTable(f, SheetScores, scoreHeaders, scoreRows, bold); err != nil {
		return nil, err
	}

	s := in.Shortlist.Summary
	summaryRows := [][]any{
		{"Run ID", in.RunID},
		{"Job", in.JobTitle},
		{"Company", in.Company},
		{"Candidates considered", s.CountConsidered},
		{"Passing threshold", s.CountPassing},
		{"Selected", s.CountSelected},
		{"Minimum threshold", s.MinThreshold},
		{"Maximum shortlist size", s.MaxCount},
		{"Lowest selected score", round1(s.MinScore)},
		{"Highest selected score", round1(s.MaxScore)},
		{"Mean selected score", round1(s.MeanScore)},
	}
	if err := writeTable(f, SheetSummary, []string{"Metric", "Value"}, summaryRows, bold); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func scoreRow(rank int, c types.CandidateRecord, s types.ScoreResult) []any {
	var rankCell any = ""
	if rank > 0 {
		rankCell = rank
	}
	return []any{
		rankCell,
		c.Name,
		c.Email,
		round1(s.OverallScore),
		round1(s.SkillsMatchScore),
		round1(s.ExperienceScore),
		round1(s.EducationScore),
		round1(s.CulturalFitScore),
		s.Recommendation,
		strings.Join(s.MatchedSkills, ", "),
		strings.Join(s.MissingSkills, ", "),
	}
}

func writeTable(f *excelize.File, sheet string, headers []string, rows [][]any, headerStyle int) error {
	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}

	last, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last+"1", headerStyle); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}
	if err := f.SetColWidth(sheet, "A", last, 18); err != nil {
		return fmt.Errorf("failed to size %s columns: %w", sheet, err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
