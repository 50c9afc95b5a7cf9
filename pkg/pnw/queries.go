package pnw

// Fixed field selections per entity type. These are request templates, not a
// query language; variables carry the id filter.

const nationQuery = `
query ($ids: [Int], $first: Int) {
  nations(id: $ids, first: $first) {
    data {
      id
      nation_name
      leader_name
      discord
      alliance_position
      num_cities
      score
      soldiers
      tanks
      aircraft
      ships
      spies
      last_active
      alliance {
        id
        name
      }
      cities {
        id
        name
        infrastructure
      }
    }
  }
}`

const allianceQuery = `
query ($ids: [Int], $first: Int) {
  alliances(id: $ids, first: $first) {
    data {
      id
      name
      acronym
      color
      score
      discord_link
      alliance_positions {
        id
        name
        position_level
        leader
        view_bank
        withdraw_bank
        accept_applicants
        remove_applicants
      }
    }
  }
}`
