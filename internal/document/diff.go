package document

import (
	"bytes"
	"encoding/json"
)

// Diff 标记两份文档在各主要分组上是否存在差异。
type Diff struct {
	PersonalInfo bool `json:"personalInfoDiff"`
	Experience   bool `json:"experienceDiff"`
	Education    bool `json:"educationDiff"`
	Projects     bool `json:"projectsDiff"`
	Skills       bool `json:"skillsDiff"`
	Identical    bool `json:"isIdentical"`
}

// Compare 对两份文档做结构化比较。比较基于归一化后的 JSON 序列化：
// 条目顺序敏感（重排视为差异），但缺失字段与零值字段等价。
func Compare(a, b *Document) Diff {
	diff := Diff{
		PersonalInfo: !jsonEqual(a.PersonalInfo, b.PersonalInfo),
		Experience:   !jsonEqual(a.Experience, b.Experience),
		Education:    !jsonEqual(a.Education, b.Education),
		Projects:     !jsonEqual(a.Projects, b.Projects),
		Skills:       !jsonEqual(a.Skills, b.Skills),
	}
	diff.Identical = !diff.PersonalInfo && !diff.Experience && !diff.Education && !diff.Projects && !diff.Skills
	return diff
}

func jsonEqual(a, b any) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}
