package concepts

// Tables used by the extractor. They are data, not logic: tune them here.

// commonFunctionChar is the most frequent ideographic function character.
// Phrases may not start or end with it.
const commonFunctionChar = '的'

var englishStopWords = toSet([]string{
	"a", "about", "above", "after", "again", "against", "all", "also", "am", "an", "and",
	"any", "are", "aren", "as", "at", "be", "because", "been", "before", "being", "below",
	"between", "both", "but", "by", "can", "cannot", "could", "did", "didn", "do", "does",
	"doesn", "doing", "don", "down", "during", "each", "even", "ever", "every", "few", "for",
	"from", "further", "get", "gets", "got", "had", "has", "have", "having", "he", "her",
	"here", "hers", "herself", "him", "himself", "his", "how", "however", "i", "if", "in",
	"into", "is", "isn", "it", "its", "itself", "just", "let", "like", "made", "make",
	"many", "may", "me", "might", "more", "most", "much", "must", "my", "myself", "never",
	"no", "nor", "not", "now", "of", "off", "on", "once", "one", "only", "or", "other",
	"ought", "our", "ours", "ourselves", "out", "over", "own", "per", "quite", "rather",
	"really", "same", "say", "says", "said", "see", "she", "should", "shouldn", "since",
	"so", "some", "such", "than", "that", "the", "their", "theirs", "them", "themselves",
	"then", "there", "these", "they", "thing", "things", "this", "those", "though",
	"through", "to", "too", "under", "until", "up", "upon", "us", "very", "was", "wasn",
	"way", "we", "well", "were", "weren", "what", "when", "where", "whether", "which",
	"while", "who", "whom", "whose", "why", "will", "with", "within", "without", "won",
	"would", "wouldn", "yet", "you", "your", "yours", "yourself", "yourselves",
})

var ideographStopChars = toRuneSet(
	"的了是在和与及或也就都而且但被把对从到我你他她它们这那有个之为以于不没很又还吗呢吧啊着过等所其将会能可要让给呀哦嗯么",
)

var ideographStopPhrases = toSet([]string{
	"一个", "一些", "一种", "一样", "自己", "已经", "然后", "因此", "如此", "而已",
	"什么", "怎么", "为什么", "如何", "非常", "其实", "只是", "现在", "时候", "可能",
	"觉得", "认为", "应该", "需要", "知道", "就是", "还是", "或者", "但是", "所以",
	"因为", "如果", "虽然", "不过", "同时", "一定", "最后", "开始", "今天", "这里",
})

func toSet(words []string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}

func toRuneSet(chars string) map[rune]struct{} {
	out := make(map[rune]struct{})
	for _, r := range chars {
		out[r] = struct{}{}
	}
	return out
}
