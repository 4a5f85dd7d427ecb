package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/atvirokodosprendimai/dicomindex/internal/domain"
)

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func printKV(rows [][2]string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
	}
	_ = w.Flush()
}

func printTable(headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Println("no results")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func printPatients(items []domain.Patient) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.PatientID,
			orDash(item.PatientName),
			orDash(item.BirthDate),
			orDash(item.Sex),
			formatTime(item.CreatedAt),
		})
	}
	printTable([]string{"PATIENT_ID", "NAME", "BIRTH_DATE", "SEX", "CREATED_AT"}, rows)
}

func printStudies(items []domain.Study) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.StudyInstanceUID,
			orDash(item.StudyDate),
			orDash(item.AccessionNumber),
			orDash(item.Description),
		})
	}
	printTable([]string{"STUDY_UID", "DATE", "ACCESSION", "DESCRIPTION"}, rows)
}

func printSeries(items []domain.Series) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.SeriesInstanceUID,
			orDash(item.Modality),
			orDash(item.SeriesNumber),
			orDash(item.Description),
			orDash(item.ThumbnailPath),
		})
	}
	printTable([]string{"SERIES_UID", "MODALITY", "NUMBER", "DESCRIPTION", "THUMBNAIL"}, rows)
}
