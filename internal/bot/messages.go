package bot

import "fmt"

// Canned replies.
const (
	followText = "您好！我是常見問題小幫手 🤖\n\n" +
		"直接輸入您的問題，我會從常見問題中找出最相近的答案。"

	joinText = "大家好！我是常見問題小幫手 🤖\n\n" +
		"在群組中請先 @我 再輸入問題，我會從常見問題中找出最相近的答案。"

	emptyMentionText = "請在 @我 後面輸入您的問題 🙂"

	rateLimitText = "⏳ 訊息過於頻繁，請稍後再試"
)

func tooLongText(limit int) string {
	return fmt.Sprintf("❌ 訊息內容過長\n\n請將問題縮短至 %d 字以內後重試。", limit)
}
