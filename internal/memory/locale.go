package memory

import "github.com/Rrens/chat-memory/internal/domain"

// Locale holds the human-language text used when rendering transcripts,
// summary prompts and the synthetic summary context item.
type Locale struct {
	Code            string
	UserLabel       string
	AssistantLabel  string
	PreviousSummary string
	RecentMessages  string
	Instructions    string
	SummaryItem     string // fmt pattern with a single %s for the summary text
}

// English is the default locale
var English = Locale{
	Code:            "en",
	UserLabel:       "User",
	AssistantLabel:  "Assistant",
	PreviousSummary: "Previous conversation summary:",
	RecentMessages:  "Recent messages in the conversation:",
	Instructions: `Write a short, precise summary of the conversation (at most 4 sentences). The summary must cover:
1. User goals - what the user wants to know or achieve
2. Decisions reached - what was agreed
3. Key facts - important details that came up (names, codes, numbers)
4. Open questions - what has not been answered yet

If a previous summary is given, update it instead of starting over. Write in the language of the conversation. Be terse.`,
	SummaryItem: "[Previous conversation summary: %s]",
}

// Hebrew reproduces the prompt text the memory layer was first calibrated with
var Hebrew = Locale{
	Code:            "he",
	UserLabel:       "משתמש",
	AssistantLabel:  "עוזר",
	PreviousSummary: "סיכום קודם של השיחה:",
	RecentMessages:  "הודעות אחרונות בשיחה:",
	Instructions: `צור סיכום קצר ומדויק של השיחה (עד 4 משפטים). הסיכום חייב לכלול:
1. מטרות המשתמש - מה הוא רוצה לדעת/להשיג
2. החלטות שהתקבלו - מה סוכם
3. עובדות מרכזיות - מידע חשוב שעלה (שמות מותגים, קופונים, מספרים)
4. שאלות פתוחות - מה עדיין לא נענה

אם יש סיכום קודם, עדכן אותו (לא להתחיל מחדש). כתוב בשפת השיחה. תמציתי.`,
	SummaryItem: "[סיכום שיחה קודמת: %s]",
}

// LocaleFor returns the locale for a code, falling back to English
func LocaleFor(code string) Locale {
	switch code {
	case Hebrew.Code:
		return Hebrew
	default:
		return English
	}
}

// RoleLabel returns the transcript label for a message role
func (l Locale) RoleLabel(role domain.MessageRole) string {
	if role == domain.RoleUser {
		return l.UserLabel
	}
	return l.AssistantLabel
}
