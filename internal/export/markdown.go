package export

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/plumber-cd/ez-netwatch/internal/domain"
)

//go:embed markdown.tmpl
var markdownTmpl string

var reportTemplate = template.Must(template.New("markdown").Parse(markdownTmpl))

// VendorFunc resolves a vendor for entries the backend did not label.
type VendorFunc func(mac string) string

type overviewRow struct {
	Name       string
	Count      int
	Randomized int
}

type section struct {
	Title string
	Rows  []map[string]string
}

// RenderMarkdown generates the inventory report. vendorOf may be nil.
func RenderMarkdown(inv *domain.Inventory, vendorOf VendorFunc) (string, error) {
	if inv == nil {
		inv = domain.NewInventory(nil, nil)
	}

	overview := []overviewRow{}
	sections := []section{}
	for _, source := range domain.Sources {
		entries := inv.Entries(source)
		randomized := 0
		rows := make([]map[string]string, 0, len(entries))
		for i := range entries {
			entry := &entries[i]
			mac := entry.MACAddress
			if entry.Randomized || domain.IsRandomizedMAC(mac) {
				randomized++
				mac += " (random)"
			}
			vendor := entry.VendorText()
			if strings.TrimSpace(vendor) == "" && vendorOf != nil {
				if guess := vendorOf(entry.MACAddress); guess != "" {
					vendor = "~" + guess
				}
			}
			rows = append(rows, map[string]string{
				"IPAddress":   markdownCode(entry.IPAddress),
				"MACAddress":  markdownCode(mac),
				"Vendor":      markdownInline(orDash(vendor)),
				"Description": markdownTableCell(orDash(entry.DescriptionText())),
				"FirstSeen":   markdownInline(orDash(entry.FirstSeen)),
				"LastSeen":    markdownInline(orDash(entry.LastSeen)),
			})
		}
		overview = append(overview, overviewRow{
			Name:       source.Folder(),
			Count:      len(entries),
			Randomized: randomized,
		})
		sections = append(sections, section{
			Title: source.Folder() + " Devices",
			Rows:  rows,
		})
	}

	fetchedAt := ""
	if !inv.FetchedAt.IsZero() {
		fetchedAt = inv.FetchedAt.UTC().Format(time.RFC3339)
	}

	input := map[string]interface{}{
		"FetchedAt": fetchedAt,
		"Overview":  overview,
		"Sections":  sections,
	}

	var sb strings.Builder
	if err := reportTemplate.Execute(&sb, input); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return sb.String(), nil
}

// Summary is a one-line count used by the status line.
func Summary(inv *domain.Inventory) string {
	if inv == nil {
		return "no inventory"
	}
	return strconv.Itoa(len(inv.Approved)) + " approved, " + strconv.Itoa(len(inv.Unapproved)) + " unapproved"
}

func markdownInline(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.ReplaceAll(value, "|", "\\|")
	return value
}

func markdownCode(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.ReplaceAll(value, "`", "'")
	return "`" + value + "`"
}

func markdownTableCell(value string) string {
	value = strings.ReplaceAll(value, "\r\n", "\n")
	value = strings.ReplaceAll(value, "\r", "\n")
	value = strings.ReplaceAll(value, "|", "\\|")
	value = strings.ReplaceAll(value, "\n", "<br>")
	return value
}

// orDash renders a blank cell as "-".
func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
