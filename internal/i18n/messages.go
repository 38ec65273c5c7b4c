package i18n

// Key identifies a catalogue entry.
type Key string

const (
	// ─── Errors ────────────────────────────────────────────────────────
	KeyGenericError     Key = "generic_error"
	KeyStartFailed      Key = "start_failed"
	KeyAnswerFailed     Key = "answer_failed"
	KeyFinishFailed     Key = "finish_failed"
	KeyAutoFinishFailed Key = "auto_finish_failed"
	KeyFormsFailed      Key = "forms_failed"
	KeyInvalidApplicant Key = "invalid_applicant"
	KeyEmptyAnswer      Key = "empty_answer"

	// ─── Screens ───────────────────────────────────────────────────────
	KeyTitle        Key = "title"
	KeyStartTitle   Key = "start_title"
	KeyName         Key = "name"
	KeyEmail        Key = "email"
	KeyRank         Key = "rank"
	KeyStarting     Key = "starting"
	KeyNoForms      Key = "no_forms"
	KeyUntitledForm Key = "untitled_form"
	KeyNoQuestions  Key = "no_questions"
	KeyAllAnswered  Key = "all_answered"
	KeyCompleted    Key = "completed"
	KeyThankYou     Key = "thank_you"
	KeyExpired      Key = "expired"
	KeyProgress     Key = "progress"
	KeyTimeLeft     Key = "time_left"
	KeyTypeAnswer   Key = "type_answer"
	KeySaving       Key = "saving"
	KeyChooseOption Key = "choose_option"
	KeyResuming     Key = "resuming"
	KeyBackHome     Key = "back_home"
	KeyChooseForm   Key = "choose_form"
	KeyPressFinish  Key = "press_finish"
	KeyBadChoice    Key = "bad_choice"
)

var catalogue = map[Lang]map[Key]string{
	English: {
		KeyGenericError:     "Something went wrong.",
		KeyStartFailed:      "Could not start test",
		KeyAnswerFailed:     "Failed to save answer. Try again.",
		KeyFinishFailed:     "Could not finish test.",
		KeyAutoFinishFailed: "Auto finish failed.",
		KeyFormsFailed:      "Failed to load forms",
		KeyInvalidApplicant: "Please fill in your Name, Email & Rank correctly.",
		KeyEmptyAnswer:      "Please type an answer.",

		KeyTitle:        "English Placement Test",
		KeyStartTitle:   "Start English Test",
		KeyName:         "Name",
		KeyEmail:        "Email",
		KeyRank:         "Rank",
		KeyStarting:     "Starting…",
		KeyNoForms:      "No test is published yet. Please check back later.",
		KeyUntitledForm: "Untitled form",
		KeyNoQuestions:  "No Questions",
		KeyAllAnswered:  "All questions answered.",
		KeyCompleted:    "Completed",
		KeyThankYou:     "Thank you for completing the English Placement Test.",
		KeyExpired:      "Time is up.",
		KeyProgress:     "Question {0}/{1}",
		KeyTimeLeft:     "Time left {0}",
		KeyTypeAnswer:   "Type your answer…",
		KeySaving:       "Saving…",
		KeyChooseOption: "Choose an option (1-{0})",
		KeyResuming:     "Resuming your test…",
		KeyBackHome:     "Back to Home",
		KeyChooseForm:   "Choose a test (1-{0})",
		KeyPressFinish:  "Press Enter to finish the test.",
		KeyBadChoice:    "Enter a number from 1 to {0}.",
	},
	Burmese: {
		KeyGenericError:     "အမှားတစ်ခု ဖြစ်ပွားခဲ့သည်။",
		KeyStartFailed:      "စမ်းသပ်မှု စတင်၍ မရပါ",
		KeyAnswerFailed:     "ဖြေဆိုမှု မှတ်မထားနိုင်ပါ။ ထပ်ကြိုးစားပါ။",
		KeyFinishFailed:     "စမ်းသပ်မှု ပြီးဆုံး၍ မရပါ။",
		KeyAutoFinishFailed: "အလိုအလျောက် ပြီးဆုံး၍ မရပါ။",
		KeyFormsFailed:      "ဖောင်များကို မထုတ်ယူနိုင်ပါ",
		KeyInvalidApplicant: "အမည်၊ email နှင့် ရာထူးကို မှန်ကန်စွာ ဖြည့်ပါ။",
		KeyEmptyAnswer:      "အဖြေ ရိုက်ထည့်ပါ။",

		KeyTitle:        "အင်္ဂလိပ်စာ စမ်းသပ်မေးခွန်းများ",
		KeyStartTitle:   "အင်္ဂလိပ် စမ်းသပ်မှု စတင်ရန်",
		KeyName:         "နာမည်",
		KeyEmail:        "အီးမေးလ်",
		KeyRank:         "ရာထူး",
		KeyStarting:     "စတင်နေပါသည်…",
		KeyNoForms:      "မည်သည့် စမ်းသပ်မှုမျှ မထုတ်ပြန်သေးပါ။",
		KeyUntitledForm: "ခေါင်းစဉ်မရှိသော ဖောင်",
		KeyNoQuestions:  "မေးခွန်းမရှိပါ",
		KeyAllAnswered:  "မေးခွန်းအားလုံး ဖြေဆိုပြီးပါပြီ။",
		KeyCompleted:    "ပြီးပါပြီ",
		KeyThankYou:     "အင်္ဂလိပ်စာ စမ်းသပ်မှု ပြီးဆုံးသွားပါပြီ။",
		KeyExpired:      "အချိန်ပြည့်ပါပြီ။",
		KeyProgress:     "မေးခွန်း {0}/{1}",
		KeyTimeLeft:     "ကျန်ချိန် {0}",
		KeyTypeAnswer:   "အဖြေ ရိုက်ထည့်ပါ…",
		KeySaving:       "သိမ်းနေသည်…",
		KeyChooseOption: "ရွေးချယ်ပါ (1-{0})",
		KeyResuming:     "စမ်းသပ်မှုကို ပြန်လည်ဖွင့်နေသည်…",
		KeyBackHome:     "မူလစာမျက်နှာ",
		KeyChooseForm:   "စမ်းသပ်မှု ရွေးပါ (1-{0})",
		KeyPressFinish:  "စမ်းသပ်မှု ပြီးဆုံးရန် Enter နှိပ်ပါ။",
		KeyBadChoice:    "1 မှ {0} အတွင်း နံပါတ် ရိုက်ထည့်ပါ။",
	},
}
