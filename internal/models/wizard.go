package models

// PageKind enumerates the evaluation wizard pages.
type PageKind int

const (
	PhaseDetailsPage PageKind = iota
	MemberPage
	SubmissionPage
)

// Page identifies the wizard position. Member is only meaningful for
// MemberPage and indexes into the ordered roster.
type Page struct {
	Kind   PageKind `json:"kind"`
	Member int      `json:"member"`
}

// Wizard evaluates navigation gates over an evaluation document. The gates
// force every criterion of every member to be scored before the submission
// review page becomes reachable, while already-visited members stay freely
// revisitable.
type Wizard struct {
	Document *EvaluationData
	Roster   []GroupMember
	Criteria []Criterion
}

// MemberAt returns the student id at the given roster index.
func (w Wizard) MemberAt(index int) (uint, bool) {
	if index < 0 || index >= len(w.Roster) {
		return 0, false
	}
	return w.Roster[index].StudentID, true
}

// CanAdvance reports whether forward navigation from the page is allowed.
// Leaving a member page forward requires that member to be complete.
func (w Wizard) CanAdvance(page Page) bool {
	switch page.Kind {
	case PhaseDetailsPage:
		return true
	case MemberPage:
		memberID, ok := w.MemberAt(page.Member)
		if !ok {
			return false
		}
		return w.Document.MemberComplete(memberID, w.Criteria)
	default:
		return false
	}
}

// Next returns the page after the given one, when advancing is allowed.
func (w Wizard) Next(page Page) (Page, bool) {
	if !w.CanAdvance(page) {
		return page, false
	}
	switch page.Kind {
	case PhaseDetailsPage:
		if len(w.Roster) == 0 {
			return page, false
		}
		return Page{Kind: MemberPage}, true
	case MemberPage:
		if page.Member+1 < len(w.Roster) {
			return Page{Kind: MemberPage, Member: page.Member + 1}, true
		}
		if !w.CanReachSubmission() {
			return page, false
		}
		return Page{Kind: SubmissionPage}, true
	default:
		return page, false
	}
}

// Prev returns the page before the given one. Backward navigation is always
// permitted.
func (w Wizard) Prev(page Page) (Page, bool) {
	switch page.Kind {
	case MemberPage:
		if page.Member == 0 {
			return Page{Kind: PhaseDetailsPage}, true
		}
		return Page{Kind: MemberPage, Member: page.Member - 1}, true
	case SubmissionPage:
		if len(w.Roster) == 0 {
			return Page{Kind: PhaseDetailsPage}, true
		}
		return Page{Kind: MemberPage, Member: len(w.Roster) - 1}, true
	default:
		return page, false
	}
}

// CanSelectMember reports whether the sidebar entry for the target index is
// clickable from the current page: revisiting the current or any earlier
// member is always allowed, and jumping ahead requires the member currently
// displayed to be complete. From the review page every member lies behind,
// so any valid target counts as backward navigation.
func (w Wizard) CanSelectMember(target int, current Page) bool {
	if _, ok := w.MemberAt(target); !ok {
		return false
	}
	if current.Kind == SubmissionPage {
		return true
	}
	if current.Kind != MemberPage {
		return w.CanAdvance(current)
	}
	if target <= current.Member {
		return true
	}
	currentID, ok := w.MemberAt(current.Member)
	if !ok {
		return false
	}
	return w.Document.MemberComplete(currentID, w.Criteria)
}

// CanReachSubmission reports whether the review page is reachable: every
// roster member must be complete. With no criteria the predicate is
// vacuously false and submission stays blocked.
func (w Wizard) CanReachSubmission() bool {
	if len(w.Criteria) == 0 || len(w.Roster) == 0 {
		return false
	}
	for _, member := range w.Roster {
		if !w.Document.MemberComplete(member.StudentID, w.Criteria) {
			return false
		}
	}
	return true
}
