package lifecycle

// Transition is the machine's full answer for one event: the stage the
// lead lands in, what a human should do next, and any derived actions
// the caller's persistence layer must execute.
type Transition struct {
	NewStage           Stage        `json:"new_stage"`
	RecommendedActions []string     `json:"recommended_actions"`
	SideEffects        []SideEffect `json:"side_effects"`
}

// Apply computes the transition for an event against the current stage.
// It is a pure function: no hidden state, no clock, no storage. Unknown
// events and suppressed leads produce a stage-preserving no-op.
func Apply(current Stage, event Event) Transition {
	// Suppression is absorbing. Nothing moves a lead out of it here;
	// un-suppression is owned by compliance tooling.
	if current == StageSuppressed {
		return noop(current)
	}

	switch event.Type {
	case EventOptOut, EventDNCRequest:
		return Transition{
			NewStage: StageSuppressed,
			RecommendedActions: []string{
				"remove from all active sequences",
				"record opt-out for audit trail",
			},
		}

	case EventSMSSent:
		if current == StageNew {
			return Transition{
				NewStage: StageContacted,
				RecommendedActions: []string{
					"watch for a reply",
					"schedule a follow-up touch in 3 days",
				},
			}
		}
		return noop(current)

	case EventSMSReceived:
		if current.IsTerminal() {
			return noop(current)
		}
		return Transition{
			NewStage: StageResponded,
			RecommendedActions: []string{
				"reply within 5 minutes while the lead is engaged",
				"ask a qualifying question",
			},
		}

	case EventCallCompleted:
		meta, ok := event.Metadata.(CallCompletedMetadata)
		if !ok {
			return noop(current)
		}
		switch meta.Disposition {
		case DispositionAppointmentSet:
			return Transition{
				NewStage: StageAppointmentSet,
				RecommendedActions: []string{
					"send a calendar confirmation",
					"prepare the property comp sheet",
				},
			}
		case DispositionQualified:
			return Transition{
				NewStage: StageQualified,
				RecommendedActions: []string{
					"push for an appointment",
					"collect property and timeline details",
				},
			}
		case DispositionNotInterested:
			return Transition{
				NewStage: StageNurturing,
				RecommendedActions: []string{
					"move to the long-term nurture sequence",
					"re-engage in 90 days",
				},
			}
		default:
			return noop(current)
		}

	case EventQualifiedSignal:
		transition := Transition{
			NewStage: StageQualified,
			RecommendedActions: []string{
				"confirm seller motivation",
				"book the appointment",
			},
		}
		if meta, ok := event.Metadata.(QualifiedSignalMetadata); ok && meta.AutoCreateDeal {
			transition.NewStage = StageDealCreated
			transition.SideEffects = append(transition.SideEffects, SideEffect{
				Type: SideEffectCreateDeal,
				Deal: &DealRequest{
					DealType:       DeriveDealType(meta.Lead),
					Source:         "qualified_signal",
					EstimatedValue: meta.Lead.EstimatedValue,
				},
			})
			transition.RecommendedActions = append(transition.RecommendedActions,
				"review the auto-created deal record")
		}
		return transition

	case EventAppointmentRequested:
		return Transition{
			NewStage: current,
			RecommendedActions: []string{
				"propose two concrete time slots",
				"send the booking link",
			},
		}

	case EventAppointmentBooked:
		return Transition{
			NewStage: StageAppointmentSet,
			RecommendedActions: []string{
				"confirm the day before",
				"prepare the offer range",
			},
		}

	case EventDealCreated:
		return Transition{
			NewStage: StageDealCreated,
			RecommendedActions: []string{
				"assign a deal owner",
				"order title and lien checks",
			},
		}

	case EventDealStageChanged:
		actions := []string{"update the deal forecast"}
		if meta, ok := event.Metadata.(DealStageChangedMetadata); ok && meta.DealStage != "" {
			actions = append(actions, "deal moved to "+meta.DealStage)
		}
		return Transition{
			NewStage:           StageDealActive,
			RecommendedActions: actions,
		}

	case EventDealWon:
		return Transition{
			NewStage: StageClosedWon,
			RecommendedActions: []string{
				"send the closing congratulations message",
				"ask for a referral",
			},
		}

	case EventDealLost:
		if meta, ok := event.Metadata.(DealLostMetadata); ok && meta.ReopenLead {
			return Transition{
				NewStage: StageNurturing,
				RecommendedActions: []string{
					"note why the deal fell through",
					"re-engage in 60 days",
				},
			}
		}
		return Transition{
			NewStage: StageClosedLost,
			RecommendedActions: []string{
				"record the loss reason",
			},
		}

	default:
		return noop(current)
	}
}

func noop(current Stage) Transition {
	return Transition{
		NewStage:           current,
		RecommendedActions: []string{},
		SideEffects:        []SideEffect{},
	}
}
