package main

type Expectation string

const (
	Positive Expectation = "POSITIVE"
	Negative Expectation = "NEGATIVE"
)

type Case struct {
	ID          int
	Expect      Expectation
	Description string
	Input       string
}

var quickCases = []Case{
	{
		ID:          1,
		Expect:      Positive,
		Description: "High risk: early refills and withdrawal",
		Input:       "Patient requesting early oxycodone refills, shows withdrawal symptoms, failed drug screen",
	},
	{
		ID:          2,
		Expect:      Negative,
		Description: "Low risk: managed post-operative course",
		Input:       "Post-surgery day 2, using ice therapy, planning to switch to ibuprofen soon",
	},
}

var fullCases = []Case{
	{
		ID:          1,
		Expect:      Positive,
		Description: "Clear opioid dependency case",
		Input: `Chief Complaint: Requesting early refill of oxycodone prescription
History: On oxycodone 30mg QID for the past 8 months following back surgery.
Reports losing prescription twice in past 3 months. Has visited 3 different doctors in past 2 months.
Shows signs of withdrawal when medication runs out including sweating, anxiety, and tremors.
Failed two random urine drug screens showing non-prescribed benzodiazepines.`,
	},
	{
		ID:          2,
		Expect:      Positive,
		Description: "Escalating tolerance and doctor shopping",
		Input: `Current Medications: Fentanyl patches 75mcg, Percocet 10mg Q4H PRN
Initially prescribed hydrocodone 5mg post dental surgery 18 months ago.
Dose escalation noted: hydrocodone -> oxycodone -> current regimen over 12 months.
Pharmacy records show fills at 4 different pharmacies.
Emergency department visits x6 in past 3 months for "severe pain".
Patient defensive when discussing medication reduction.`,
	},
	{
		ID:          3,
		Expect:      Positive,
		Description: "Behavioral red flags with prescription history",
		Input: `Referred for pain management evaluation. Chronic lower back pain, multiple surgeries.
Current: Morphine ER 60mg BID, oxycodone 15mg Q6H breakthrough.
Frequently calls for early refills citing various reasons.
Reports medications "not working as well anymore".
Missed 3 scheduled appointments but shows up for prescription renewals.
Spouse reports patient is isolated, mood changes, sleeping during day.
Previous addiction history with alcohol (10 years sober).`,
	},
	{
		ID:          4,
		Expect:      Positive,
		Description: "Post-surgical dependency development",
		Input: `Post-op Week 16 from ACL reconstruction.
Still requesting oxycodone 10mg despite expected healing timeframe.
Reports 10/10 pain without medication, 6/10 with medication.
Has obtained prescriptions from urgent care twice when regular doctor unavailable.
Family history significant for substance use disorders.
Patient admits taking "extra doses" when pain is bad.`,
	},
	{
		ID:          5,
		Expect:      Positive,
		Description: "Multiple risk factors and aberrant behaviors",
		Input: `Chief complaint: Depression and chronic pain after motor vehicle accident 2 years ago.
Current meds: OxyContin 40mg BID, Xanax 2mg TID, Soma 350mg QID.
Unemployed since accident, going through divorce. Drinks "occasionally" while on medications.
Has been to ER 8 times in 6 months. Failed pill count at last visit (short by 12 pills).
Positive cocaine on last UDS. Requests specific medications by name, refuses alternatives.`,
	},
	{
		ID:          6,
		Expect:      Negative,
		Description: "Appropriate post-operative pain management",
		Input: `Post-Operative Day 3, total hip replacement.
Pain management: Oxycodone 5mg Q6H PRN, taken as prescribed, using ice and elevation.
Plans to transition to NSAIDs by end of week per surgeon's protocol.
No history of substance use, first surgery. Good family support system.
Patient asking about non-opioid alternatives for next week.`,
	},
	{
		ID:          7,
		Expect:      Negative,
		Description: "Acute injury with appropriate response",
		Input: `Emergency Department Visit: fractured radius from fall while hiking.
Pain 7/10 at presentation, improved to 4/10 with immobilization.
Given Percocet 5mg x10 tablets for acute pain.
Patient expressed concerns about taking opioids due to family history.
Plans to use acetaminophen and ibuprofen primarily. No previous opioid prescriptions.`,
	},
	{
		ID:          8,
		Expect:      Negative,
		Description: "Cancer patient with legitimate pain needs",
		Input: `Stage IIIB lung cancer, currently on chemotherapy.
Morphine ER 15mg BID, morphine IR 5mg Q4H PRN breakthrough.
Uses medication log, typical use 1-2 breakthrough doses daily.
Compliant with all appointments, participates in cancer support group.
No aberrant behaviors noted, appropriate affect.`,
	},
	{
		ID:          9,
		Expect:      Negative,
		Description: "Chronic pain with good management practices",
		Input: `Rheumatoid arthritis, fibromyalgia. Tramadol 50mg BID, primarily uses NSAIDs.
Attends pain management program, uses CBT techniques, physical therapy 2x weekly.
Medication agreement in place, never requested early refills.
Random drug screens all appropriate x2 years. Functional improvement noted.`,
	},
	{
		ID:          10,
		Expect:      Negative,
		Description: "Elderly patient with appropriate palliative care",
		Input: `Severe osteoarthritis, spinal stenosis, CHF.
Hydrocodone 5mg BID for severe pain days only; uses about 20 tablets per month (prescribed 60).
Medications managed by daughter who is a nurse.
Also using scheduled acetaminophen, topical lidocaine, heat therapy.
No cognitive impairment, no signs of misuse. Regular follow-ups with primary care.`,
	},
}
