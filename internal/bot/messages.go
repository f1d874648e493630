package bot

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"safety-inspection/internal/entities"
	"safety-inspection/pkg/telegram"
)

const (
	msgNotRegistered   = "You need to register first! Use /register to get started."
	msgInactive        = "Your account is inactive. Please contact your administrator."
	msgNoAreas         = "No areas configured yet. Please contact your administrator."
	msgInternalError   = "Sorry, something went wrong. Please try again later."
	msgNoConversation  = "I didn't get that. Use /menu to see what I can do."
	msgUnknownCommand  = "Unknown command. Use /help to see available commands."
	msgButtonExpired   = "This button has expired. Use /report to start again."
	msgAlreadyRegister = "You are already registered! Use /report to submit findings."

	msgRegisterStart     = "Let's register your account! 📝\n\nFirst, what is your full name?"
	msgAskName           = "Please provide your name."
	msgStaffIDShort      = "Staff ID seems too short. Please try again."
	msgAskDepartment     = "Which department do you belong to?"
	msgAskSection        = "Please provide your section."
	msgRegisterCancelled = "Registration cancelled. Use /register to start again."
	msgStaffIDTaken      = "This Staff ID is already registered. Please contact support."
	msgTelegramTaken     = "This Telegram account is already linked to a user. Use /start to see your profile."

	msgReportStart        = "Let's report a safety finding! 🔍\n\nWhich area is this finding related to?"
	msgUseAreaButtons     = "Please choose an area using the buttons above."
	msgAskDescription     = "Got it! Now please describe the safety issue you found.\n\nWhat did you observe?"
	msgDescriptionMissing = "Please provide a description."
	msgDescriptionShort   = "Description is too short. Please provide more details."
	msgAskPhoto           = "Great! Now please upload a photo of the safety issue.\n\nSend a photo now, or type 'skip' to continue without a photo."
	msgPhotoOrSkip        = "Please send a photo or type 'skip' to continue without a photo."
	msgAskSeverity        = "How severe is this issue?"
	msgUseSeverityButtons = "Please choose a severity using the buttons above."
	msgAskLocation        = "Got it! One last question:\n\nWhat is the specific location of this issue? (e.g., 'Near entrance', 'Machine #3', or reply 'skip' to skip)"
	msgLocationMissing    = "Please provide a location or 'skip'."
	msgPhotoFailed        = "Sorry, the photo could not be saved. Please try again with /report."
	msgSaveFailed         = "Sorry, there was an error saving your report. Please try again."
	msgRegisterBusy       = "The report register is busy right now. Please send the location again to retry."
	msgReportCancelled    = "Report cancelled. Use /report to start again."

	msgCancelled = "Operation cancelled. Use /help to see available commands."

	msgHelp = "Safety Inspection Bot Help 🦺\n\n" +
		"Available commands:\n\n" +
		"/start - Start the bot or see your profile\n" +
		"/menu - Show bot menu\n" +
		"/register - Register your account\n" +
		"/report - Report a new safety finding\n" +
		"/myreports - View your reported findings\n" +
		"/help - Show this help message\n" +
		"/cancel - Cancel current operation\n\n" +
		"Need help? Contact your administrator."

	msgMenu = "🦺 <b>Safety Inspection Bot Menu</b>\n\nChoose an option below:"

	myReportsPreviewRunes = 50
)

func welcomeBack(u *entities.User) string {
	return fmt.Sprintf("Welcome back, %s! 👋\n\n"+
		"Your details:\n"+
		"Name: %s\n"+
		"Staff ID: %s\n"+
		"Department: %s\n"+
		"Section: %s\n\n"+
		"Use /report to submit a new safety finding.",
		u.FullName, u.FullName, u.StaffID, u.Department, u.Section)
}

const msgWelcomeNew = "Welcome to Safety Inspection Bot! 🦺\n\n" +
	"I see you're new here. Let's get you registered.\n\n" +
	"Please use /register to start the registration process."

func niceToMeet(name string) string {
	return fmt.Sprintf("Nice to meet you, %s! 👋\n\nWhat is your Staff ID?", name)
}

func pickDepartment() string {
	return "Please select from the list: " + strings.Join(entities.Departments, ", ")
}

func askSection(department string) string {
	return fmt.Sprintf("Got it! What is your section within %s?\n(e.g., 'Line A', 'QC Team', 'Night Shift')", department)
}

func reviewRegistration(d RegistrationDraft) string {
	return fmt.Sprintf("Please review your details:\n\n"+
		"Name: %s\n"+
		"Staff ID: %s\n"+
		"Department: %s\n"+
		"Section: %s\n\n"+
		"Reply 'YES' to confirm or 'NO' to start over.",
		d.FullName, d.StaffID, d.Department, d.Section)
}

func registrationComplete(u *entities.User) string {
	return fmt.Sprintf("Registration complete! 🎉\n\nWelcome, %s!\n\nYou can now use /report to submit safety findings.", u.FullName)
}

func findingRecorded(f *entities.Finding, withPhoto bool) string {
	photo := ""
	if withPhoto {
		photo = " (with photo)"
	}
	return fmt.Sprintf("Your safety finding has been recorded%s! ✅\n\n"+
		"Report ID: %s\n"+
		"Severity: %s %s\n"+
		"Status: %s\n\n"+
		"Thank you for helping keep our workplace safe! 🦺\n\n"+
		"Use /report to submit another finding.",
		photo, f.ReportID, f.Severity.Emoji(), f.Severity.Label(), f.Status.Label())
}

func profile(u *entities.User) string {
	roles := map[entities.Role]string{
		entities.RoleReporter:   "Reporter",
		entities.RoleAdmin:      "Admin",
		entities.RoleSuperAdmin: "Super Admin",
	}
	role, ok := roles[u.Role]
	if !ok {
		role = "Reporter"
	}
	status := "✅ Active"
	if !u.IsActive {
		status = "❌ Inactive"
	}
	joined := "N/A"
	if !u.CreatedAt.IsZero() {
		joined = u.CreatedAt.Format("2006-01-02")
	}
	esc := telegram.EscapeHTML
	return fmt.Sprintf("👤 <b>My Profile</b>\n\n"+
		"<b>Name:</b> %s\n"+
		"<b>Staff ID:</b> %s\n"+
		"<b>Department:</b> %s\n"+
		"<b>Section:</b> %s\n"+
		"<b>Role:</b> %s\n"+
		"<b>Status:</b> %s\n\n"+
		"<b>Joined:</b> %s",
		esc(u.FullName), esc(u.StaffID), esc(u.Department), esc(u.Section), role, status, joined)
}

func myReports(findings []entities.Finding) string {
	if len(findings) == 0 {
		return "You haven't reported any findings yet.\n\nUse /report to submit your first finding."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Your recent findings (%d):\n\n", len(findings))
	for _, f := range findings {
		fmt.Fprintf(&sb, "%s <b>%s</b>\n", f.Severity.Emoji(), telegram.EscapeHTML(f.ReportID))
		fmt.Fprintf(&sb, "Status: %s\n", f.Status.Label())
		fmt.Fprintf(&sb, "%s\n\n", telegram.EscapeHTML(preview(f.Description, myReportsPreviewRunes)))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func preview(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit]) + "..."
}

func menuKeyboard() telegram.MessageOption {
	return telegram.WithKeyboard([][]telegram.InlineKeyboardButton{
		{
			{Text: "📝 Report Finding", CallbackData: "menu_report"},
			{Text: "📋 My Reports", CallbackData: "menu_myreports"},
		},
		{
			{Text: "👤 My Profile", CallbackData: "menu_profile"},
			{Text: "ℹ️ Help", CallbackData: "menu_help"},
		},
	})
}

func backKeyboard() telegram.MessageOption {
	return telegram.WithKeyboard([][]telegram.InlineKeyboardButton{
		{{Text: "« Back to Menu", CallbackData: "menu_back"}},
	})
}

func departmentKeyboard() telegram.MessageOption {
	rows := make([][]telegram.ReplyKeyboardButton, 0, len(entities.Departments))
	for _, d := range entities.Departments {
		rows = append(rows, []telegram.ReplyKeyboardButton{{Text: d}})
	}
	return telegram.WithReplyKeyboard(rows)
}

func areaKeyboard(areas []entities.Area) telegram.MessageOption {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(areas))
	for _, a := range areas {
		rows = append(rows, []telegram.InlineKeyboardButton{{Text: a.Name, CallbackData: "area_" + a.ID.String()}})
	}
	return telegram.WithKeyboard(rows)
}

func severityKeyboard() telegram.MessageOption {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(entities.Severities))
	for _, s := range entities.Severities {
		rows = append(rows, []telegram.InlineKeyboardButton{{
			Text:         s.Emoji() + " " + s.Label(),
			CallbackData: "sev_" + s.String(),
		}})
	}
	return telegram.WithKeyboard(rows)
}
