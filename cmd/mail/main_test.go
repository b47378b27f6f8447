package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessage_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "非 JSON", body: `not json`, want: "反序列化失败"},
		{name: "未知类型", body: `{"type":"create_user","to":"a@example.com","data":{}}`, want: "不支持的邮件类型"},
		{name: "数据结构不匹配", body: `{"type":"reconciliation_report","to":"a@example.com","data":{"parsedUsers":"many"}}`, want: "邮件数据"},
		{name: "收件人无效", body: `{"type":"reconciliation_failed","to":"nobody","data":{"targetDate":"2026-01-05"}}`, want: "收件人"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildMessage("noreply@example.com", []byte(tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
