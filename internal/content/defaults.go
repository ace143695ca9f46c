package content

// Default is the portfolio written into a freshly generated site file.
func Default() Portfolio {
	return Portfolio{
		About: About{
			Name:     "Melissa Casole",
			Headline: "UX Director & Design Systems Leader",
			Location: "Remote",
			Bio: "Design leader with **15+ years** of experience turning complex workflows into clear, " +
				"accessible products.\n\n" +
				"- Vision & strategy aligned with business goals\n" +
				"- Team development and empathetic management\n" +
				"- Process optimization and change management\n",
		},
		Projects: []Project{
			{
				ID:              "first-advantage-design-system",
				Title:           "First Advantage Design System",
				Description:     "Comprehensive design system for background screening platform",
				LongDescription: "Led the creation of a scalable design system serving **50+ product teams** across multiple platforms, resulting in 40% faster development cycles and improved user experience consistency.",
				Technologies:    []string{"Figma", "React", "TypeScript", "Storybook", "Design Tokens"},
				Category:        "Design System",
				Year:            2023,
				Status:          "completed",
				ImageURL:        "https://images.unsplash.com/photo-1611224923853-80b023f02d71?w=800&h=600&fit=crop&q=80",
				ThumbnailURL:    "https://images.unsplash.com/photo-1611224923853-80b023f02d71?w=400&h=300&fit=crop&q=80",
				Highlights: []string{
					"Reduced design-to-development time by 40%",
					"Achieved 95% adoption across product teams",
					"Improved accessibility compliance to WCAG 2.1 AA",
				},
				Metrics: Metrics{UserIncrease: "40%", PerformanceImprovement: "25%", TimeToMarket: "6 weeks"},
			},
			{
				ID:              "marinemax-pos-interface",
				Title:           "MarineMax POS Interface",
				Description:     "Modern point-of-sale system for marine retail operations",
				LongDescription: "Redesigned the entire POS experience for the largest recreational boat retailer, focusing on efficiency and ease of use for sales representatives.",
				Technologies:    []string{"React", "Redux", "Material-UI", "Node.js", "PostgreSQL"},
				Category:        "Enterprise Software",
				Year:            2022,
				Status:          "completed",
				ImageURL:        "https://images.unsplash.com/photo-1559028006-448665bd7c7f?w=800&h=600&fit=crop&q=80",
				ThumbnailURL:    "https://images.unsplash.com/photo-1559028006-448665bd7c7f?w=400&h=300&fit=crop&q=80",
				Highlights: []string{
					"Increased transaction speed by 60%",
					"Reduced training time for new employees by 50%",
					"Improved customer satisfaction scores by 35%",
				},
				Metrics: Metrics{PerformanceImprovement: "60%", UserIncrease: "35%", ConversionRate: "22%"},
			},
			{
				ID:              "accessibility-framework",
				Title:           "Accessibility Framework",
				Description:     "WCAG 2.2 AA compliant design and development standards",
				LongDescription: "Established comprehensive accessibility guidelines and an automated testing framework so every product meets WCAG 2.2 AA.",
				Technologies:    []string{"axe-core", "WAVE", "VoiceOver", "JAWS", "Color Oracle"},
				Category:        "Accessibility",
				Year:            2023,
				Status:          "completed",
				ImageURL:        "https://images.unsplash.com/photo-1573164713714-d95e436ab8d6?w=800&h=600&fit=crop&q=80",
				ThumbnailURL:    "https://images.unsplash.com/photo-1573164713714-d95e436ab8d6?w=400&h=300&fit=crop&q=80",
				Highlights: []string{
					"Achieved WCAG 2.2 AA compliance across all products",
					"Reduced accessibility violations by 85%",
				},
				Metrics: Metrics{PerformanceImprovement: "90%", UserIncrease: "25%", TimeToMarket: "16 weeks"},
			},
		},
		Skills: []Skill{
			{
				ID: "figma", Name: "Figma", Category: "Design Tools", Level: 98,
				Description:       "Advanced prototyping and design system creation",
				Projects:          []string{"first-advantage-design-system", "marinemax-pos-interface"},
				YearsOfExperience: 5,
				Certifications:    []string{"Figma Professional Certification"},
			},
			{
				ID: "react", Name: "React", Category: "Development", Level: 92,
				Description:       "Modern React development with hooks and state management",
				Projects:          []string{"first-advantage-design-system", "marinemax-pos-interface"},
				YearsOfExperience: 6,
				Certifications:    []string{"React Professional Developer"},
			},
			{
				ID: "ux-research", Name: "UX Research", Category: "Research", Level: 94,
				Description:       "User testing methodologies and analysis",
				Projects:          []string{"marinemax-pos-interface"},
				YearsOfExperience: 15,
				Certifications:    []string{"Certified Usability Analyst (CUA)"},
			},
		},
		Experience: []Experience{
			{
				ID:          "ux-director",
				Company:     "First Advantage",
				Position:    "Director of UX",
				StartDate:   "2020-03",
				Description: "Led UX strategy and design system implementation across multiple product lines",
				Achievements: []string{
					"Established design system used by 50+ teams",
					"Improved user satisfaction by 40%",
					"Reduced development time by 30%",
				},
				Technologies: []string{"Figma", "React", "Design Systems", "User Research"},
				TeamSize:     12,
				Location:     "Remote",
			},
		},
		CaseStudies: []CaseStudy{
			{
				ID:        "design-system-transformation",
				Title:     "Design System Transformation",
				Subtitle:  "Building scalable design foundations",
				Client:    "First Advantage",
				Duration:  "18 months",
				Team:      []string{"UX Director", "Senior Designers (3)", "Front-end Engineers (4)"},
				MyRole:    "UX Director & Design System Lead",
				Challenge: "Inconsistent user experiences across 15+ products, slow development cycles, and lack of design standards",
				Solution:  "Comprehensive design system with reusable components, design tokens, and clear governance model",
				Outcome:   "Unified user experience, 40% faster development, and improved accessibility compliance",
				Metrics: map[string]string{
					"Development Speed":   "+40%",
					"Design Consistency":  "+85%",
					"Accessibility Score": "95%",
					"Team Adoption":       "100%",
				},
				Images: []string{
					"https://images.unsplash.com/photo-1611224923853-80b023f02d71?w=800&h=600&fit=crop&q=80",
				},
				Technologies: []string{"Figma", "React", "TypeScript", "Storybook"},
				Testimonial: &Testimonial{
					Quote:    "Melissa's leadership in creating our design system has been transformational for our product organization.",
					Author:   "John Smith",
					Position: "VP of Product",
				},
			},
		},
	}
}
