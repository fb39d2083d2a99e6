// Package docx 将简历文档渲染为 Word 文件。
// 导出为单栏版式，分区顺序固定：抬头、联系方式、目标、经历、学历、技能。
package docx

import (
	"fmt"
	"io"
	"strings"

	"github.com/fumiama/go-docx"

	"cvbuilder/internal/document"
)

const accentColor = "2E74B5"

// Write 渲染文档并写入 w。
func Write(doc *document.Document, w io.Writer) error {
	file := docx.New().WithDefaultTheme()

	name := doc.PersonalInfo.FullName
	if name == "" {
		name = "Full Name"
	}
	position := doc.PersonalInfo.Position
	if position == "" {
		position = "Desired Position"
	}

	title := file.AddParagraph().Justification("center")
	title.AddText(strings.ToUpper(name)).Size("44").Bold()

	subtitle := file.AddParagraph().Justification("center")
	subtitle.AddText(strings.ToUpper(position)).Size("28")

	contact := joinNonEmpty(" | ",
		doc.PersonalInfo.Email, doc.PersonalInfo.Phone, doc.PersonalInfo.Address)
	if contact != "" {
		file.AddParagraph().Justification("center").AddText(contact)
	}

	if doc.PersonalInfo.Summary != "" {
		addSectionTitle(file, "Career Objective")
		file.AddParagraph().Justification("both").AddText(doc.PersonalInfo.Summary)
	}

	if len(doc.Experience) > 0 {
		addSectionTitle(file, "Work Experience")
		for _, exp := range doc.Experience {
			head := file.AddParagraph()
			head.AddText(exp.Company).Size("24").Bold()
			head.AddText(fmt.Sprintf("  (%s - %s)", exp.StartDate, exp.EndDate)).Italic()

			file.AddParagraph().AddText(exp.Position).Bold().Color(accentColor)
			if exp.Description != "" {
				file.AddParagraph().AddText(exp.Description)
			}
		}
	}

	if len(doc.Education) > 0 {
		addSectionTitle(file, "Education")
		for _, edu := range doc.Education {
			p := file.AddParagraph()
			p.AddText(edu.School).Bold()
			p.AddText(" - " + edu.Degree)
			p.AddText(fmt.Sprintf(" (%s - %s)", edu.StartDate, edu.EndDate)).Italic()
		}
	}

	if len(doc.Skills) > 0 {
		addSectionTitle(file, "Skills")
		values := make([]string, 0, len(doc.Skills))
		for _, s := range doc.Skills {
			values = append(values, s.Value)
		}
		file.AddParagraph().AddText(strings.Join(values, ", "))
	}

	if _, err := file.WriteTo(w); err != nil {
		return fmt.Errorf("write docx: %w", err)
	}
	return nil
}

func addSectionTitle(file *docx.Docx, title string) {
	p := file.AddParagraph()
	p.AddText(strings.ToUpper(title)).Size("28").Bold().Color(accentColor)
}

func joinNonEmpty(sep string, parts ...string) string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
