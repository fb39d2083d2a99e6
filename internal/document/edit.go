package document

import (
	"errors"
	"fmt"
)

// 编辑操作的错误类别，调用方用 errors.Is 判定后映射为客户端错误。
var (
	ErrUnknownSection  = errors.New("unknown section")
	ErrUnknownField    = errors.New("unknown field")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrUnknownColumn   = errors.New("unknown column")
)

// 列名常量，对应两个列排序列表。
const (
	ColumnLeft  = "left"
	ColumnRight = "right"
)

// AddItem 在指定分区末尾追加一个带默认内容的新条目，并返回其 id。
func (d *Document) AddItem(section string) (string, error) {
	id := newItemID()
	switch section {
	case SectionExperience:
		d.Experience = append(cloneSlice(d.Experience), ExperienceItem{
			ID: id, Company: "Company", Position: "Position",
			StartDate: "2022", EndDate: "2023", Description: "Describe your responsibilities...",
		})
	case SectionEducation:
		d.Education = append(cloneSlice(d.Education), EducationItem{
			ID: id, School: "University", Degree: "Major", StartDate: "2018", EndDate: "2022",
		})
	case SectionProjects:
		d.Projects = append(cloneSlice(d.Projects), ProjectItem{
			ID: id, Name: "Project", Role: "Role",
			StartDate: "2023", EndDate: "2023", Description: "Describe the project...",
		})
	case SectionSkills:
		d.Skills = append(cloneSlice(d.Skills), SimpleItem{ID: id, Value: "New skill"})
	case SectionActivities:
		d.Activities = append(cloneSlice(d.Activities), ActivityItem{
			ID: id, Name: "Activity", Role: "Role",
			StartDate: "2020", EndDate: "2021", Description: "Describe the activity...",
		})
	case SectionCertificates:
		d.Certificates = append(cloneSlice(d.Certificates), NamedYearItem{ID: id, Year: "2023", Name: "Certificate"})
	case SectionAwards:
		d.Awards = append(cloneSlice(d.Awards), NamedYearItem{ID: id, Year: "2023", Name: "Award"})
	case SectionReferences:
		d.References = append(cloneSlice(d.References), ReferenceItem{
			ID: id, Name: "Reference", Position: "Title", Company: "Company",
		})
	case SectionInterests:
		d.Interests = append(cloneSlice(d.Interests), SimpleItem{ID: id, Value: "Interest"})
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownSection, section)
	}
	return id, nil
}

// RemoveItem 按下标删除条目，保持其余条目的相对顺序；被删 id 不会复用。
func (d *Document) RemoveItem(section string, index int) error {
	switch section {
	case SectionExperience:
		return removeAt(&d.Experience, index)
	case SectionEducation:
		return removeAt(&d.Education, index)
	case SectionProjects:
		return removeAt(&d.Projects, index)
	case SectionSkills:
		return removeAt(&d.Skills, index)
	case SectionActivities:
		return removeAt(&d.Activities, index)
	case SectionCertificates:
		return removeAt(&d.Certificates, index)
	case SectionAwards:
		return removeAt(&d.Awards, index)
	case SectionReferences:
		return removeAt(&d.References, index)
	case SectionInterests:
		return removeAt(&d.Interests, index)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownSection, section)
	}
}

// MoveItem 将分区内 from 位置的条目移动到 to 位置（splice 语义）：
// 区间外的条目不受影响，区间内的条目整体平移一位。
func (d *Document) MoveItem(section string, from, to int) error {
	switch section {
	case SectionExperience:
		return spliceMove(&d.Experience, from, to)
	case SectionEducation:
		return spliceMove(&d.Education, from, to)
	case SectionProjects:
		return spliceMove(&d.Projects, from, to)
	case SectionSkills:
		return spliceMove(&d.Skills, from, to)
	case SectionActivities:
		return spliceMove(&d.Activities, from, to)
	case SectionCertificates:
		return spliceMove(&d.Certificates, from, to)
	case SectionAwards:
		return spliceMove(&d.Awards, from, to)
	case SectionReferences:
		return spliceMove(&d.References, from, to)
	case SectionInterests:
		return spliceMove(&d.Interests, from, to)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownSection, section)
	}
}

// SetField 修改指定分区中单个条目的单个字段。
// 写入采用 copy-on-write：仅替换被修改条目所在的切片，原切片不被原地改写。
func (d *Document) SetField(section string, index int, field, value string) error {
	switch section {
	case SectionExperience:
		return setFieldAt[ExperienceItem](&d.Experience, index, field, value)
	case SectionEducation:
		return setFieldAt[EducationItem](&d.Education, index, field, value)
	case SectionProjects:
		return setFieldAt[ProjectItem](&d.Projects, index, field, value)
	case SectionSkills:
		return setFieldAt[SimpleItem](&d.Skills, index, field, value)
	case SectionActivities:
		return setFieldAt[ActivityItem](&d.Activities, index, field, value)
	case SectionCertificates:
		return setFieldAt[NamedYearItem](&d.Certificates, index, field, value)
	case SectionAwards:
		return setFieldAt[NamedYearItem](&d.Awards, index, field, value)
	case SectionReferences:
		return setFieldAt[ReferenceItem](&d.References, index, field, value)
	case SectionInterests:
		return setFieldAt[SimpleItem](&d.Interests, index, field, value)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownSection, section)
	}
}

// SetInfo 修改 personalInfo 中的单个字段。
func (d *Document) SetInfo(field, value string) error {
	switch field {
	case "fullName":
		d.PersonalInfo.FullName = value
	case "position":
		d.PersonalInfo.Position = value
	case "email":
		d.PersonalInfo.Email = value
	case "phone":
		d.PersonalInfo.Phone = value
	case "address":
		d.PersonalInfo.Address = value
	case "linkedin":
		d.PersonalInfo.LinkedIn = value
	case "github":
		d.PersonalInfo.GitHub = value
	case "photo":
		d.PersonalInfo.Photo = value
	case "summary":
		d.PersonalInfo.Summary = value
	default:
		return fmt.Errorf("%w: personalInfo.%s", ErrUnknownField, field)
	}
	return nil
}

// MergeSettings 将 patch 中的非零字段覆盖到当前设置上。
func (d *Document) MergeSettings(patch Settings) {
	if patch.Template != "" {
		d.Settings.Template = patch.Template
	}
	if patch.Color != "" {
		d.Settings.Color = patch.Color
	}
	if patch.FontFamily != "" {
		d.Settings.FontFamily = patch.FontFamily
	}
	if patch.FontSize != 0 {
		d.Settings.FontSize = patch.FontSize
	}
	if patch.LineHeight != 0 {
		d.Settings.LineHeight = patch.LineHeight
	}
	if patch.SectionSpacing != 0 {
		d.Settings.SectionSpacing = patch.SectionSpacing
	}
}

// MoveSection 在列排序列表内（或跨两列）移动一个分区 token。
// 操作只改写排序列表，不触碰分区内容；token 既不会丢失也不会重复。
func (d *Document) MoveSection(fromColumn string, fromIndex int, toColumn string, toIndex int) error {
	src, err := d.columnOrder(fromColumn)
	if err != nil {
		return err
	}
	if fromIndex < 0 || fromIndex >= len(*src) {
		return fmt.Errorf("%w: %s[%d]", ErrIndexOutOfRange, fromColumn, fromIndex)
	}

	if fromColumn == toColumn {
		return spliceMove(src, fromIndex, toIndex)
	}

	dst, err := d.columnOrder(toColumn)
	if err != nil {
		return err
	}
	if toIndex < 0 || toIndex > len(*dst) {
		return fmt.Errorf("%w: %s[%d]", ErrIndexOutOfRange, toColumn, toIndex)
	}

	token := (*src)[fromIndex]
	newSrc := make([]string, 0, len(*src)-1)
	newSrc = append(newSrc, (*src)[:fromIndex]...)
	newSrc = append(newSrc, (*src)[fromIndex+1:]...)

	newDst := make([]string, 0, len(*dst)+1)
	newDst = append(newDst, (*dst)[:toIndex]...)
	newDst = append(newDst, token)
	newDst = append(newDst, (*dst)[toIndex:]...)

	*src = newSrc
	*dst = newDst
	return nil
}

func (d *Document) columnOrder(column string) (*[]string, error) {
	switch column {
	case ColumnLeft:
		return &d.LeftColumnOrder, nil
	case ColumnRight:
		return &d.RightColumnOrder, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, column)
	}
}

type fieldSetter interface {
	setField(field, value string) error
}

func setFieldAt[T any, PT interface {
	*T
	fieldSetter
}](list *[]T, index int, field, value string) error {
	if index < 0 || index >= len(*list) {
		return fmt.Errorf("%w: index %d", ErrIndexOutOfRange, index)
	}
	out := make([]T, len(*list))
	copy(out, *list)
	if err := PT(&out[index]).setField(field, value); err != nil {
		return err
	}
	*list = out
	return nil
}

func removeAt[T any](list *[]T, index int) error {
	if index < 0 || index >= len(*list) {
		return fmt.Errorf("%w: index %d", ErrIndexOutOfRange, index)
	}
	out := make([]T, 0, len(*list)-1)
	out = append(out, (*list)[:index]...)
	out = append(out, (*list)[index+1:]...)
	*list = out
	return nil
}

func spliceMove[T any](list *[]T, from, to int) error {
	n := len(*list)
	if from < 0 || from >= n {
		return fmt.Errorf("%w: from %d", ErrIndexOutOfRange, from)
	}
	if to < 0 || to >= n {
		return fmt.Errorf("%w: to %d", ErrIndexOutOfRange, to)
	}
	out := make([]T, n)
	copy(out, *list)
	item := out[from]
	out = append(out[:from], out[from+1:]...)
	rest := append(out[:to:to], item)
	out = append(rest, out[to:]...)
	*list = out
	return nil
}

func (it *ExperienceItem) setField(field, value string) error {
	switch field {
	case "company":
		it.Company = value
	case "position":
		it.Position = value
	case "startDate":
		it.StartDate = value
	case "endDate":
		it.EndDate = value
	case "description":
		it.Description = value
	default:
		return fmt.Errorf("%w: experience.%s", ErrUnknownField, field)
	}
	return nil
}

func (it *EducationItem) setField(field, value string) error {
	switch field {
	case "school":
		it.School = value
	case "degree":
		it.Degree = value
	case "startDate":
		it.StartDate = value
	case "endDate":
		it.EndDate = value
	default:
		return fmt.Errorf("%w: education.%s", ErrUnknownField, field)
	}
	return nil
}

func (it *ProjectItem) setField(field, value string) error {
	switch field {
	case "name":
		it.Name = value
	case "role":
		it.Role = value
	case "link":
		it.Link = value
	case "startDate":
		it.StartDate = value
	case "endDate":
		it.EndDate = value
	case "description":
		it.Description = value
	default:
		return fmt.Errorf("%w: projects.%s", ErrUnknownField, field)
	}
	return nil
}

func (it *ActivityItem) setField(field, value string) error {
	switch field {
	case "name":
		it.Name = value
	case "role":
		it.Role = value
	case "startDate":
		it.StartDate = value
	case "endDate":
		it.EndDate = value
	case "description":
		it.Description = value
	default:
		return fmt.Errorf("%w: activities.%s", ErrUnknownField, field)
	}
	return nil
}

func (it *NamedYearItem) setField(field, value string) error {
	switch field {
	case "year":
		it.Year = value
	case "name":
		it.Name = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	return nil
}

func (it *ReferenceItem) setField(field, value string) error {
	switch field {
	case "name":
		it.Name = value
	case "position":
		it.Position = value
	case "company":
		it.Company = value
	case "phone":
		it.Phone = value
	case "email":
		it.Email = value
	default:
		return fmt.Errorf("%w: references.%s", ErrUnknownField, field)
	}
	return nil
}

func (it *SimpleItem) setField(field, value string) error {
	if field != "value" {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	it.Value = value
	return nil
}
