package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
)

// ResolveVersion 选取覆盖指定日期的BOM版本
// draft版本不参与；闭区间比较，effective_to为空视为永久有效。
// 返回 (命中版本, 候选数)；候选数>1说明写入侧的冲突约束被绕过，
// 调用方应记录数据完整性告警但不中断——按 effective_from 最新 →
// 版本号较大 → 创建时间最新 的顺序取胜
func ResolveVersion(versions []entity.BOMVersion, productID string, asOf time.Time) (*entity.BOMVersion, int, error) {
	var matches []*entity.BOMVersion
	for i := range versions {
		v := &versions[i]
		if v.ProductID != productID || v.Status == entity.BOMStatusDraft {
			continue
		}
		if v.EffectiveContains(asOf) {
			matches = append(matches, v)
		}
	}

	if len(matches) == 0 {
		return nil, 0, &NotFoundError{Resource: "bom_version", Message: "该日期没有生效的BOM版本"}
	}

	best := matches[0]
	for _, m := range matches[1:] {
		if betterMatch(m, best) {
			best = m
		}
	}
	return best, len(matches), nil
}

// betterMatch 多版本同时命中时的取胜规则（防御性路径，正常不触发）
func betterMatch(a, b *entity.BOMVersion) bool {
	af, bf := a.EffectiveFrom, b.EffectiveFrom
	if af != nil && bf != nil && !af.Equal(*bf) {
		return af.After(*bf)
	}
	if cmp := CompareVersionLabels(a.Version, b.Version); cmp != 0 {
		return cmp > 0
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// ValidateDateRange 校验有效期区间
func ValidateDateRange(from time.Time, to *time.Time) error {
	if to != nil && from.After(*to) {
		return validationErrorf("生效日期不能晚于失效日期")
	}
	return nil
}

// CheckOverlap 检查候选区间是否与已有非draft版本重叠
// 闭区间判定: a1<=b2 && a2<=b1，to为空按+∞处理；excludeID用于排除候选自身。
// 返回第一个冲突版本，无冲突返回nil
func CheckOverlap(existing []entity.BOMVersion, from time.Time, to *time.Time, excludeID string) *entity.BOMVersion {
	for i := range existing {
		v := &existing[i]
		if v.ID == excludeID || v.Status == entity.BOMStatusDraft || v.EffectiveFrom == nil {
			continue
		}
		if rangesOverlap(from, to, *v.EffectiveFrom, v.EffectiveTo) {
			return v
		}
	}
	return nil
}

func rangesOverlap(a1 time.Time, b1 *time.Time, a2 time.Time, b2 *time.Time) bool {
	// a1 <= b2
	if b2 != nil && a1.After(*b2) {
		return false
	}
	// a2 <= b1
	if b1 != nil && a2.After(*b1) {
		return false
	}
	return true
}

// CompareVersionLabels 比较版本号，数字段按数值比较（"1.10" > "1.9"）
// a>b返回1，a<b返回-1，相等返回0
func CompareVersionLabels(a, b string) int {
	as := splitVersionLabel(a)
	bs := splitVersionLabel(b)
	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		if i >= len(as) {
			return -1
		}
		if i >= len(bs) {
			return 1
		}
		an, aNum := parseSegment(as[i])
		bn, bNum := parseSegment(bs[i])
		switch {
		case aNum && bNum:
			if an != bn {
				if an > bn {
					return 1
				}
				return -1
			}
		case aNum != bNum:
			// 数字段排在文字段之前（"1.5" < "1.5-XMAS" 已由长度规则覆盖；
			// 同位一数一文时数字视为较小，保证排序稳定）
			if aNum {
				return -1
			}
			return 1
		default:
			if cmp := strings.Compare(as[i], bs[i]); cmp != 0 {
				return cmp
			}
		}
	}
	return 0
}

func splitVersionLabel(s string) []string {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "v")
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == '-' || r == '_'
	})
}

func parseSegment(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
