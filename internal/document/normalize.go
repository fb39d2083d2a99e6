package document

import "strings"

// Normalize 将文档整理为内部统一表示：
//   - 所有分区切片非 nil；
//   - 每个条目都持有稳定 id（缺失时生成，绝不复用）；
//   - 显示设置补齐默认值；
//   - 列排序列表缺失时使用默认顺序。
//
// 该操作幂等，加载与落库前都会调用。
func (d *Document) Normalize() {
	if strings.TrimSpace(d.Name) == "" {
		d.Name = DefaultName
	}

	d.Experience = ensureIDs(d.Experience, func(it *ExperienceItem) *string { return &it.ID })
	d.Education = ensureIDs(d.Education, func(it *EducationItem) *string { return &it.ID })
	d.Projects = ensureIDs(d.Projects, func(it *ProjectItem) *string { return &it.ID })
	d.Skills = ensureIDs(d.Skills, func(it *SimpleItem) *string { return &it.ID })
	d.Activities = ensureIDs(d.Activities, func(it *ActivityItem) *string { return &it.ID })
	d.Certificates = ensureIDs(d.Certificates, func(it *NamedYearItem) *string { return &it.ID })
	d.Awards = ensureIDs(d.Awards, func(it *NamedYearItem) *string { return &it.ID })
	d.References = ensureIDs(d.References, func(it *ReferenceItem) *string { return &it.ID })
	d.Interests = ensureIDs(d.Interests, func(it *SimpleItem) *string { return &it.ID })

	d.Settings = mergeSettings(d.Settings)

	if len(d.LeftColumnOrder) == 0 {
		d.LeftColumnOrder = cloneSlice(DefaultLeftColumnOrder)
	}
	if len(d.RightColumnOrder) == 0 {
		d.RightColumnOrder = cloneSlice(DefaultRightColumnOrder)
	}
}

func ensureIDs[T any](items []T, id func(*T) *string) []T {
	out := make([]T, len(items))
	copy(out, items)
	for i := range out {
		if field := id(&out[i]); *field == "" {
			*field = newItemID()
		}
	}
	return out
}

func mergeSettings(s Settings) Settings {
	def := DefaultSettings()
	if s.Template == "" {
		s.Template = def.Template
	}
	if s.Color == "" {
		s.Color = def.Color
	}
	if s.FontFamily == "" {
		s.FontFamily = def.FontFamily
	}
	if s.FontSize == 0 {
		s.FontSize = def.FontSize
	}
	if s.LineHeight == 0 {
		s.LineHeight = def.LineHeight
	}
	if s.SectionSpacing == 0 {
		s.SectionSpacing = def.SectionSpacing
	}
	return s
}
