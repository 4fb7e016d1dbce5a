package flow

import (
	"strings"

	"github.com/Majidul17068/carevoice/internal/validate"
)

// eventTypeQuestion is the enumerated-choice opener of both scripts.
const eventTypeQuestion = "Can you tell me the type of event from the following options?\n" +
	" - Fall\n" +
	" - Behaviour\n" +
	" - Medication\n" +
	" - Skin integrity\n" +
	" - Environmental\n" +
	" - Absconding\n" +
	" - Physical Assault\n" +
	" - Self harm\n" +
	" - IPC related\n" +
	" - Near miss\n" +
	" - Missing person\n" +
	" - Other"

// narrativeQuestion is the open-ended prompt whose answer is analyzed for
// injury risk.
const narrativeQuestion = "Please provide details of the event"

const informedPartyQuestion = "Please state name and date if any of the following parties has been informed:\n" +
	" - Family, Next of Kin or Advocate\n" +
	" - Social Worker or case manager\n" +
	" - Adult Safeguarding\n" +
	" - CQC\n" +
	" - Police\n" +
	" - GP\n" +
	" - RIDDOR\n" +
	" - Other, please specify\n" +
	"(e.g: \"We informed the social worker named Sajib on 24th October 2024\")"

// mainScript is the shared question sequence. Incident and accident bindings
// are kept separate to allow future divergence even though the content is
// identical today.
var mainScript = []string{
	eventTypeQuestion,
	"Please provide the name of the staff member who has any information regarding the incident",
	"Where did the event take place?",
	"When did the event happen?",
	"Were there any witnesses?",
	narrativeQuestion,
	"Please provide details of any immediate action taken",
	"Was there any medical treatment administered?",
	"Would you like to add any vital observations?",
	"Please describe any recovery action taken and by whom?",
	informedPartyQuestion,
}

// IncidentQuestions returns the question script bound for incident reports.
func IncidentQuestions() []string {
	return append([]string(nil), mainScript...)
}

// AccidentQuestions returns the question script bound for accident reports.
func AccidentQuestions() []string {
	return append([]string(nil), mainScript...)
}

// questionKind maps a question's content to the validator grammar it expects.
func questionKind(question string) validate.Kind {
	switch {
	case strings.Contains(question, "type of event"):
		return validate.KindEventType
	case strings.Contains(question, "When did the event happen"):
		return validate.KindTemporal
	case strings.Contains(question, "parties has been informed"):
		return validate.KindInformedParty
	default:
		return validate.KindFreeForm
	}
}

// correctionPrompt returns the targeted reprompt for a failed validation.
func correctionPrompt(kind validate.Kind) string {
	switch kind {
	case validate.KindEventType:
		return "Please select one of the provided options. If you are not sure, please say 'Other'."
	case validate.KindInjurySize:
		return "Please say 'Small', 'Medium' or 'Large'."
	case validate.KindTemporal:
		return "Please include when the event happened, for example a time like 3 pm, or a day such as yesterday."
	case validate.KindInformedParty:
		return "Please include the name of the person or party informed and the date they were informed."
	default:
		return "Please could you rephrase that?"
	}
}

// Spoken prompts emitted by the dialogue engine.
const (
	welcomeTemplate    = "Hi %s, welcome to the Care Home Incident and Accident Reporting System."
	condolenceTemplate = "I'm sorry to hear that there's been an event involving resident %s. Let's gather the details to ensure proper care and follow-up."
	gateQuestion       = "Did the event result in any physical injury or harm to a person, even if minor, like a scratch? Please say 'yes' or 'no'."
	gateReprompt       = "Please say 'yes' or 'no' to continue."
	scriptIntro        = "Let's start with questions about the %s."
	noCatchReprompt    = "I didn't catch that. Could you please repeat?"
	skipNotice         = "Sorry, we couldn't capture your response. Let's move to the next question."
	yesNoReprompt      = "Please say 'yes' or 'no'."

	injuryConfirmQuestion  = "It sounds like someone may have been hurt. Did the event result in a physical injury? Please say 'yes' or 'no'."
	injurySizeQuestion     = "What is the size of the injury? Please choose: Small, Medium or Large."
	injuryLocationQuestion = "Where on the body is the injury located?"

	editQuestion      = "Before I generate the report, would you like to edit any response? Please say 'yes' or 'no'."
	editPrompt        = "Okay, please restate the details you would like the report to reflect."
	summaryIntro      = "Thank you for filling out the form, here is a summary of the event."
	notifyQuestion    = "Would you like me to notify the manager? Please say 'yes' or 'no'."
	closingMessage    = "Your report has been recorded. Thank you, and take care."
	stopNotice        = "The report session has been stopped."
	analysisFallback  = "I couldn't fully analyse the event details, so I'll ask a couple of safety questions to be sure."
	injurySkipNotice  = "We'll continue with the rest of the questions."
)
