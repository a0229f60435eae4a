package metrics

import "testing"

func TestCollectorsReadyAtImport(t *testing.T) {
	// 包加载后所有指标立即可用，使用方无须先调用 InitMetrics
	if SchedulerRunsTotal == nil || AlertsProcessedTotal == nil || AlertFailuresTotal == nil {
		t.Fatal("scheduler collectors must be registered at package load")
	}
	if PostingsMatchedTotal == nil || EmailsSentTotal == nil || SearchAPIErrorsTotal == nil || RunDuration == nil {
		t.Fatal("delivery collectors must be registered at package load")
	}

	// 重复调用不会重复注册（MustRegister 遇到重复会 panic）
	InitMetrics()
	InitMetrics()
}
