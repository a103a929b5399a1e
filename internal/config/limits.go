package config

// LINE Messaging API limits.
// https://developers.line.biz/en/reference/messaging-api/
const (
	LINEMaxTextMessageLength = 5000
	LINEMaxMessagesPerReply  = 5
	LINEMaxEventsPerWebhook  = 100
	LINEMinReplyTokenLength  = 10
)

// Defaults carried over from the first release of the bot. The
// stop-word files are deployment data and are not shipped with the code;
// without the Chinese list, words such as 如何 count as terms and unrelated
// questions can clear the threshold.
const (
	DefaultPort            = "5003"
	DefaultCorpusFile      = "faq_dataset.json"
	DefaultStopwordsZHFile = "baidu_stopwords.txt"
	DefaultStopwordsENFile = "EN-Stopwords.txt"
	DefaultThreshold       = 0.5
	DefaultFallbackAnswer  = "抱歉，目前無法處理您的請求，請稍後再試。"
)

// Tokenizer names accepted by FAQ_TOKENIZER.
const (
	TokenizerGse    = "gse"
	TokenizerBigram = "bigram"
)
