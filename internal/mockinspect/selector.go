package mockinspect

import "fmt"

// QuestionContext describes the next question to surface for a topic. The
// QuestionID is content-derived: the same session state always yields the
// same identifier.
type QuestionContext struct {
	QuestionID    string `json:"question_id"`
	TopicID       string `json:"topic_id"`
	TemplateID    string `json:"template_id"`
	IsFollowUp    bool   `json:"is_follow_up"`
	FollowUpIndex int    `json:"follow_up_index"`
}

// SelectNextTopic walks orderedTopicIDs in catalog order and returns the
// first topic that still has room for questions. A topic is exhausted once
// it is closed or its follow-up count has reached the per-topic ceiling.
// Returns "" and false when every topic in the list is exhausted.
func SelectNextTopic(s *Session, orderedTopicIDs []string) (string, bool) {
	for _, id := range orderedTopicIDs {
		ts, opened := s.Topics[id]
		if !opened {
			return id, true
		}
		if ts.closed() {
			continue
		}
		if ts.FollowUpsAsked >= s.Limits.MaxFollowUpsPerTopic {
			continue
		}
		return id, true
	}
	return "", false
}

// SelectNextQuestion chooses the next question template for a topic: the
// first starter if no question has been asked yet, otherwise a follow-up
// selected by cycling through the follow-up list with the topic's current
// follow-up count modulo the list length. Wrapping back to the first
// follow-up keeps topics with few authored templates answerable up to the
// ceiling. Returns nil when the topic is exhausted or no template exists.
func SelectNextQuestion(s *Session, topicID string, starterTemplateIDs, followupTemplateIDs []string, topicVersion int) (*QuestionContext, error) {
	ts, opened := s.Topics[topicID]

	asked := 0
	followUps := 0
	if opened {
		asked = ts.QuestionsAsked
		followUps = ts.FollowUpsAsked
	}

	if asked == 0 {
		if len(starterTemplateIDs) == 0 {
			return nil, nil
		}

		templateID := starterTemplateIDs[0]
		qid, err := ComputeQuestionID(topicID, topicVersion, 0, templateID)
		if err != nil {
			return nil, err
		}

		return &QuestionContext{
			QuestionID:    qid,
			TopicID:       topicID,
			TemplateID:    templateID,
			IsFollowUp:    false,
			FollowUpIndex: 0,
		}, nil
	}

	if followUps >= s.Limits.MaxFollowUpsPerTopic {
		// Topic exhausted; caller should move on via SelectNextTopic.
		return nil, nil
	}
	if len(followupTemplateIDs) == 0 {
		return nil, nil
	}

	idx := followUps % len(followupTemplateIDs)
	templateID := followupTemplateIDs[idx]

	qid, err := ComputeQuestionID(topicID, topicVersion, idx, templateID)
	if err != nil {
		return nil, err
	}

	return &QuestionContext{
		QuestionID:    qid,
		TopicID:       topicID,
		TemplateID:    templateID,
		IsFollowUp:    true,
		FollowUpIndex: idx,
	}, nil
}

// ComputeQuestionID derives a question identifier from exactly four inputs.
// Changing any one of them, including the topic version, changes the id;
// repeating them always reproduces it.
func ComputeQuestionID(topicID string, topicVersion, followupIndex int, templateID string) (string, error) {
	id, err := ContentHash(map[string]any{
		"topic_id":       topicID,
		"topic_version":  topicVersion,
		"followup_index": followupIndex,
		"template_id":    templateID,
	})
	if err != nil {
		return "", fmt.Errorf("mockinspect.ComputeQuestionID: %w", err)
	}
	return id, nil
}
