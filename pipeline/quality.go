package pipeline

import (
	"fmt"
	"sync"
	"time"

	"churnform/ml"
	"churnform/schema"
)

// Issue severities
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
)

const maxRecentIssues = 256

// QualityRule 质量检查规则
type QualityRule interface {
	Check(record ml.Record) []QualityIssue
	Name() string
}

// QualityIssue 质量问题。问题只做记录，不会拒绝提交。
type QualityIssue struct {
	Type      string    `json:"type"`
	Severity  string    `json:"severity"`
	Field     string    `json:"field"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// QualityStats 质量统计
type QualityStats struct {
	TotalAudited int64            `json:"total_audited"`
	Clean        int64            `json:"clean"`
	Flagged      int64            `json:"flagged"`
	Issues       map[string]int64 `json:"issues"`
	LastAudit    time.Time        `json:"last_audit"`
}

// QualityAuditor 记录会被编码器回退为默认值的字段
type QualityAuditor struct {
	rules      []QualityRule
	issues     []QualityIssue
	issuesLock sync.RWMutex

	stats     QualityStats
	statsLock sync.RWMutex
}

// NewQualityAuditor 创建审计器
func NewQualityAuditor(registry *schema.Registry) *QualityAuditor {
	a := &QualityAuditor{
		issues: make([]QualityIssue, 0),
		stats:  QualityStats{Issues: make(map[string]int64)},
	}

	// 添加默认规则
	a.AddRule(&UnseenCategoryRule{registry: registry})
	a.AddRule(&NumericTextRule{registry: registry})
	a.AddRule(&MissingFeatureRule{registry: registry})
	return a
}

// AddRule 添加规则
func (a *QualityAuditor) AddRule(rule QualityRule) {
	a.rules = append(a.rules, rule)
}

// Audit 检查一条记录
func (a *QualityAuditor) Audit(record ml.Record) []QualityIssue {
	now := time.Now()
	var found []QualityIssue
	for _, rule := range a.rules {
		for _, issue := range rule.Check(record) {
			issue.Type = rule.Name()
			issue.Timestamp = now
			found = append(found, issue)
		}
	}

	a.statsLock.Lock()
	a.stats.TotalAudited++
	a.stats.LastAudit = now
	if len(found) == 0 {
		a.stats.Clean++
	} else {
		a.stats.Flagged++
	}
	for _, issue := range found {
		a.stats.Issues[issue.Type]++
	}
	a.statsLock.Unlock()

	if len(found) > 0 {
		a.issuesLock.Lock()
		a.issues = append(a.issues, found...)
		if over := len(a.issues) - maxRecentIssues; over > 0 {
			a.issues = append([]QualityIssue(nil), a.issues[over:]...)
		}
		a.issuesLock.Unlock()
	}
	return found
}

// Stats 获取统计信息
func (a *QualityAuditor) Stats() QualityStats {
	a.statsLock.RLock()
	defer a.statsLock.RUnlock()

	stats := a.stats
	stats.Issues = make(map[string]int64, len(a.stats.Issues))
	for k, v := range a.stats.Issues {
		stats.Issues[k] = v
	}
	return stats
}

// Issues 获取最近的问题
func (a *QualityAuditor) Issues(limit int) []QualityIssue {
	a.issuesLock.RLock()
	defer a.issuesLock.RUnlock()

	if limit <= 0 || limit > len(a.issues) {
		limit = len(a.issues)
	}

	issues := make([]QualityIssue, limit)
	copy(issues, a.issues[len(a.issues)-limit:])
	return issues
}

// ClearIssues 清空问题列表
func (a *QualityAuditor) ClearIssues() {
	a.issuesLock.Lock()
	defer a.issuesLock.Unlock()

	a.issues = make([]QualityIssue, 0)
}

// ============ 规则实现 ============

// UnseenCategoryRule 类别标签不在参考表中
type UnseenCategoryRule struct {
	registry *schema.Registry
}

func (r *UnseenCategoryRule) Name() string {
	return "unseen_category"
}

func (r *UnseenCategoryRule) Check(record ml.Record) []QualityIssue {
	var issues []QualityIssue
	for _, field := range r.registry.CategoricalFields() {
		value, ok := record.Get(field)
		if !ok || value.String() == "" {
			continue
		}
		if r.registry.CategoryCode(field, value.String()) == schema.DefaultCode {
			issues = append(issues, QualityIssue{
				Severity: SeverityMedium,
				Field:    field,
				Message:  fmt.Sprintf("label %q is not a known category", value.String()),
			})
		}
	}
	return issues
}

// NumericTextRule 数值字段为空或无法解析
type NumericTextRule struct {
	registry *schema.Registry
}

func (r *NumericTextRule) Name() string {
	return "numeric_text"
}

func (r *NumericTextRule) Check(record ml.Record) []QualityIssue {
	var issues []QualityIssue
	for _, field := range r.registry.ExpectedFeatures() {
		if r.registry.IsCategorical(field) {
			continue
		}
		value, ok := record.Get(field)
		if !ok {
			continue
		}
		if _, ok := value.Float(); ok {
			continue
		}
		issue := QualityIssue{Severity: SeverityMedium, Field: field,
			Message: fmt.Sprintf("%q is not a number", value.String())}
		if value.String() == "" {
			issue.Severity = SeverityLow
			issue.Message = "left blank"
		}
		issues = append(issues, issue)
	}
	return issues
}

// MissingFeatureRule 模型需要但表单未采集的特征
type MissingFeatureRule struct {
	registry *schema.Registry
}

func (r *MissingFeatureRule) Name() string {
	return "missing_feature"
}

func (r *MissingFeatureRule) Check(record ml.Record) []QualityIssue {
	var issues []QualityIssue
	for _, field := range r.registry.ExpectedFeatures() {
		if _, ok := record.Get(field); ok {
			continue
		}
		issues = append(issues, QualityIssue{
			Severity: SeverityLow,
			Field:    field,
			Message:  "not captured; encoded as default",
		})
	}
	return issues
}
