// Package document 定义单份简历文档的结构与编辑操作。
// 文档以 JSONB 形式整体存储，字段命名与前端编辑器保持一致。
package document

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// DefaultName 为未命名简历的占位名称。
const DefaultName = "Untitled CV"

// 可重复分区的名称常量，同时用作列排序列表中的 token。
const (
	SectionExperience   = "experience"
	SectionEducation    = "education"
	SectionProjects     = "projects"
	SectionSkills       = "skills"
	SectionActivities   = "activities"
	SectionCertificates = "certificates"
	SectionAwards       = "awards"
	SectionReferences   = "references"
	SectionInterests    = "interests"
)

// 两个视觉列的默认 token 顺序。列表中还包含仅用于渲染的伪分区
// （contact、summary、certificates_awards、additionalInfo）。
var (
	DefaultLeftColumnOrder  = []string{"contact", "skills", "interests", "references"}
	DefaultRightColumnOrder = []string{"summary", "experience", "projects", "education", "activities", "certificates_awards", "additionalInfo"}
)

// Document 表示一份完整的简历文档。
type Document struct {
	Name             string          `json:"cvName"`
	PersonalInfo     PersonalInfo    `json:"personalInfo"`
	Experience       []ExperienceItem `json:"experience"`
	Education        []EducationItem  `json:"education"`
	Projects         []ProjectItem    `json:"projects"`
	Skills           []SimpleItem     `json:"skills"`
	Activities       []ActivityItem   `json:"activities"`
	Certificates     []NamedYearItem  `json:"certificates"`
	Awards           []NamedYearItem  `json:"awards"`
	References       []ReferenceItem  `json:"references"`
	Interests        []SimpleItem     `json:"interests"`
	AdditionalInfo   string           `json:"additionalInfo,omitempty"`
	Settings         Settings         `json:"settings"`
	LeftColumnOrder  []string         `json:"leftColumnOrder"`
	RightColumnOrder []string         `json:"rightColumnOrder"`
}

// PersonalInfo 为自由填写的联系与概要信息，字段之间无约束。
type PersonalInfo struct {
	FullName string `json:"fullName,omitempty"`
	Position string `json:"position,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
	LinkedIn string `json:"linkedin,omitempty"`
	GitHub   string `json:"github,omitempty"`
	Photo    string `json:"photo,omitempty"`
	Summary  string `json:"summary,omitempty"`
}

// ExperienceItem 表示一段工作经历。
type ExperienceItem struct {
	ID          string `json:"id"`
	Company     string `json:"company,omitempty"`
	Position    string `json:"position,omitempty"`
	StartDate   string `json:"startDate,omitempty"`
	EndDate     string `json:"endDate,omitempty"`
	Description string `json:"description,omitempty"`
}

// EducationItem 表示一段教育经历。
type EducationItem struct {
	ID        string `json:"id"`
	School    string `json:"school,omitempty"`
	Degree    string `json:"degree,omitempty"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}

// ProjectItem 表示一个项目条目。
type ProjectItem struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Role        string `json:"role,omitempty"`
	Link        string `json:"link,omitempty"`
	StartDate   string `json:"startDate,omitempty"`
	EndDate     string `json:"endDate,omitempty"`
	Description string `json:"description,omitempty"`
}

// ActivityItem 表示一条课外/社团活动。
type ActivityItem struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Role        string `json:"role,omitempty"`
	StartDate   string `json:"startDate,omitempty"`
	EndDate     string `json:"endDate,omitempty"`
	Description string `json:"description,omitempty"`
}

// NamedYearItem 用于证书与奖项条目。
type NamedYearItem struct {
	ID   string `json:"id"`
	Year string `json:"year,omitempty"`
	Name string `json:"name,omitempty"`
}

// ReferenceItem 表示一位推荐人。
type ReferenceItem struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Position string `json:"position,omitempty"`
	Company  string `json:"company,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
}

// SimpleItem 用于技能、兴趣等单值分区。
// 历史数据中此类条目可能是裸字符串，UnmarshalJSON 在模型边界统一归一化，
// 之后的调用链只会见到 {id, value} 形式。
type SimpleItem struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// UnmarshalJSON 同时接受 "value" 与 {"id":..,"value":..} 两种形式。
func (s *SimpleItem) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			return err
		}
		s.ID = ""
		s.Value = value
		return nil
	}

	type plain SimpleItem
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = SimpleItem(p)
	return nil
}

// Settings 描述文档的全局显示样式，所有字段均有默认值。
type Settings struct {
	Template       string  `json:"template,omitempty"`
	Color          string  `json:"color,omitempty"`
	FontFamily     string  `json:"fontFamily,omitempty"`
	FontSize       float64 `json:"fontSize,omitempty"`
	LineHeight     float64 `json:"lineHeight,omitempty"`
	SectionSpacing int     `json:"sectionSpacing,omitempty"`
}

// 模板枚举：至少提供 classic 与 modern 两种。
const (
	TemplateModern  = "modern"
	TemplateClassic = "classic"
)

// DefaultSettings 返回全部取默认值的显示设置。
func DefaultSettings() Settings {
	return Settings{
		Template:       TemplateModern,
		Color:          "#333333",
		FontFamily:     "'Roboto', sans-serif",
		FontSize:       13.5,
		LineHeight:     1.5,
		SectionSpacing: 24,
	}
}

// New 创建一份空文档；name 为空时使用占位名称。
func New(name string) *Document {
	if strings.TrimSpace(name) == "" {
		name = DefaultName
	}
	doc := &Document{Name: name}
	doc.Normalize()
	return doc
}

// Clone 返回文档的深拷贝，后续对任一份的修改互不影响。
func (d *Document) Clone() *Document {
	out := *d
	out.Experience = cloneSlice(d.Experience)
	out.Education = cloneSlice(d.Education)
	out.Projects = cloneSlice(d.Projects)
	out.Skills = cloneSlice(d.Skills)
	out.Activities = cloneSlice(d.Activities)
	out.Certificates = cloneSlice(d.Certificates)
	out.Awards = cloneSlice(d.Awards)
	out.References = cloneSlice(d.References)
	out.Interests = cloneSlice(d.Interests)
	out.LeftColumnOrder = cloneSlice(d.LeftColumnOrder)
	out.RightColumnOrder = cloneSlice(d.RightColumnOrder)
	return &out
}

// PlainContent 拼接摘要、经历描述、技能与项目描述，
// 用于判断文档内容量（AI 打分的短内容短路）。
func (d *Document) PlainContent() string {
	parts := make([]string, 0, 1+len(d.Experience)+len(d.Skills)+len(d.Projects))
	parts = append(parts, d.PersonalInfo.Summary)
	for _, e := range d.Experience {
		parts = append(parts, e.Description)
	}
	for _, s := range d.Skills {
		parts = append(parts, s.Value)
	}
	for _, p := range d.Projects {
		parts = append(parts, p.Description)
	}
	return strings.Join(parts, " ")
}

// Marshal 序列化文档为 JSON。
func (d *Document) Marshal() ([]byte, error) {
	return json.Marshal(d)
}

// Unmarshal 解析 JSON 并立即归一化。
func Unmarshal(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	doc.Normalize()
	return &doc, nil
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func newItemID() string {
	return uuid.NewString()
}
