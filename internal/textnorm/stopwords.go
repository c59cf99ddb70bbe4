package textnorm

var englishStopwords = []string{
	"a", "an", "the", "and", "or", "of", "to", "for", "with", "by",
	"in", "on", "at", "from", "as", "is", "are", "was", "were", "be",
	"been", "it", "its", "this", "that", "these", "those", "we", "our", "you",
	"your", "i", "me", "my", "us", "them", "they", "their", "he", "she",
	"his", "her", "do", "does", "did", "what", "how", "why", "when", "where",
	"which", "who", "can", "could", "should", "would", "may", "might", "will", "shall",
	"has", "have", "had", "not", "no", "but", "if", "than", "then", "so",
	"about", "after", "before", "over", "into", "also", "said", "says",
}

var chineseStopwords = []string{
	"的", "了", "和", "是", "在", "也", "就", "都", "而", "及", "与", "或",
	"我们", "你们", "他们", "她们", "它们", "这个", "那个", "这些", "那些",
	"一个", "没有", "因为", "所以", "但是", "如果", "已经", "以及", "对于", "表示",
}

// DefaultStopwords returns a fresh copy of the built-in stopword list.
func DefaultStopwords() []string {
	out := make([]string, 0, len(englishStopwords)+len(chineseStopwords))
	out = append(out, englishStopwords...)
	return append(out, chineseStopwords...)
}
