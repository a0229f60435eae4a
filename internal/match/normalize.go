package match

import (
	"strings"
	"time"

	"github.com/javabetatester/JobAlerts/internal/model"
	"github.com/javabetatester/JobAlerts/internal/search"
)

// LocationUnknown 是 city/state/country 全部缺失时的占位地点。
const LocationUnknown = "Location not specified"

// NormalizePosting 将上游原始职位转换为内部 Posting。
//
// 调用方需要保证 JobID 非空；时间与地点的兜底规则：
//   - 发布时间缺失或无法解析时取当前时间
//   - 地点由 city/state/country 逗号拼接，全空时使用 LocationUnknown
func NormalizePosting(job search.Job) model.Posting {
	return model.Posting{
		ExternalID:     strings.TrimSpace(job.JobID),
		Title:          job.JobTitle,
		Company:        job.EmployerName,
		Location:       buildLocation(job),
		Description:    job.JobDescription,
		JobURL:         job.JobApplyLink,
		SalaryMin:      job.JobMinSalary,
		SalaryMax:      job.JobMaxSalary,
		EmploymentType: job.JobEmploymentType,
		PublishedAt:    parsePublishedAt(job.JobPostedAtDatetime),
	}
}

// buildLocation 逗号拼接非空的地点分量。
func buildLocation(job search.Job) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{job.JobCity, job.JobState, job.JobCountry} {
		if v := strings.TrimSpace(p); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return LocationUnknown
	}
	return strings.Join(parts, ", ")
}

// parsePublishedAt 解析上游的 UTC 发布时间，失败时取当前时间。
func parsePublishedAt(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Now()
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	return time.Now()
}
